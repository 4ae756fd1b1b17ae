package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/attendance"
)

type attendanceApi struct {
	service *attendance.Service
}

func registerAttendanceAPI(g *echo.Group, service *attendance.Service) {
	a := attendanceApi{service: service}
	g.GET("/attendance", a.attendanceQuery)
}

// attendanceQuery lists the records of ?date=YYYY-MM-DD (today by default).
func (api *attendanceApi) attendanceQuery(ctx echo.Context) error {
	filter := new(attendance.QueryFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	if val := ctx.QueryParam("date"); val != "" {
		date, err := core.ParseDate(val)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "must be a YYYY-MM-DD date"})
		}
		filter.Date = date
	} else {
		filter.Date = api.service.Today()
	}

	records, err := api.service.Query(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}
