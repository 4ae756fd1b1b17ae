package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo/core/incident"
)

type incidentApi struct {
	service *incident.Service
}

func registerIncidentAPI(g *echo.Group, service *incident.Service) {
	a := incidentApi{service: service}

	ig := g.Group("/incidents")
	ig.GET("", a.incidentQuery)
	ig.GET("/:id", a.incidentRetrieve)
}

func (api *incidentApi) incidentQuery(ctx echo.Context) error {
	filter := new(incident.QueryFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	incidents, err := api.service.Query(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return err
	}
	if incidents == nil {
		incidents = []incident.Incident{}
	}
	return ctx.JSON(http.StatusOK, incidents)
}

func (api *incidentApi) incidentRetrieve(ctx echo.Context) error {
	inc, err := api.service.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inc)
}
