package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo/core/roster"
)

type rosterApi struct {
	service *roster.Service
}

func registerRosterAPI(g *echo.Group, service *roster.Service) {
	a := rosterApi{service: service}
	g.GET("/students", a.studentQuery)
	g.GET("/doctors", a.doctorQuery)
	g.GET("/courses", a.courseQuery)
}

func (api *rosterApi) studentQuery(ctx echo.Context) error {
	students, err := api.service.Students(ctx.Request().Context())
	if err != nil {
		return err
	}
	if students == nil {
		students = []roster.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *rosterApi) doctorQuery(ctx echo.Context) error {
	doctors, err := api.service.Doctors(ctx.Request().Context())
	if err != nil {
		return err
	}
	if doctors == nil {
		doctors = []roster.Doctor{}
	}
	return ctx.JSON(http.StatusOK, doctors)
}

func (api *rosterApi) courseQuery(ctx echo.Context) error {
	courses, err := api.service.Courses(ctx.Request().Context())
	if err != nil {
		return err
	}
	if courses == nil {
		courses = []roster.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}
