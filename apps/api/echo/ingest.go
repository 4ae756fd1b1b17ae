package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/ingest"
	metricsvc "github.com/trezcool/masomo/services/metrics"
)

// ingest handles producer events: {"action": "...", "data": {...}}.
// Exactly one row is written per accepted event; rejected events write nothing.
func (s *server) ingest(ctx echo.Context) error {
	evt := new(ingest.Event)
	if err := ctx.Bind(evt); err != nil {
		s.Metrics.ObserveIngest(string(evt.Action), metricsvc.OutcomeInvalid)
		return err
	}

	res, err := s.Dispatcher.Dispatch(ctx.Request().Context(), *evt)
	if err != nil {
		return s.ingestError(evt.Action, err)
	}
	s.Metrics.ObserveIngest(string(evt.Action), metricsvc.OutcomeOK)
	return ctx.JSON(http.StatusOK, res)
}

func (s *server) ingestError(act ingest.Action, err error) error {
	switch cause := errors.Cause(err).(type) {
	case validator.ValidationErrors, *core.ValidationError:
		s.Metrics.ObserveIngest(string(act), metricsvc.OutcomeInvalid)
		return err
	default:
		if cause == ingest.ErrUnknownAction {
			s.Metrics.ObserveIngest(string(act), metricsvc.OutcomeUnknown)
			return echo.NewHTTPError(http.StatusBadRequest, ingest.ErrUnknownAction.Error())
		}
		// producers get the store's own message back
		s.Metrics.ObserveIngest(string(act), metricsvc.OutcomeStoreErr)
		s.Logger.Error("ingest failed", err)
		return echo.NewHTTPError(http.StatusInternalServerError, cause.Error()).SetInternal(err)
	}
}
