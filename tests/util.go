package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"testing"

	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/attendance"
	"github.com/trezcool/masomo/core/incident"
	"github.com/trezcool/masomo/core/ingest"
	"github.com/trezcool/masomo/core/realtime"
	"github.com/trezcool/masomo/core/roster"
	logsvc "github.com/trezcool/masomo/services/logger"
	"github.com/trezcool/masomo/storage/database/inmem"
)

// Config returns the TEST config: memory store and broker, rollbar disabled.
func Config() *core.Config {
	if os.Getenv("ENV") == "" {
		_ = os.Setenv("ENV", "TEST")
	}
	return core.NewConfig()
}

// NewLogger returns a disabled rollbar logger writing to std (io.Discard when nil).
func NewLogger(std *log.Logger) core.Logger {
	if std == nil {
		std = log.New(io.Discard, "", 0)
	}
	conf := Config()
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(false)
	return logger
}

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	incident.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	return validate, translator
}

// Stack is the in-memory ingestion pipeline: store, broker and services.
type Stack struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	Hub        *realtime.Hub
	DB         *inmemdb.DB
	Incidents  *incident.Service
	Attendance *attendance.Service
	Roster     *roster.Service
	Dispatcher *ingest.Dispatcher
}

func NewStack(t *testing.T, hubOpts ...realtime.HubOption) *Stack {
	conf := Config()
	validate, translator := NewValidator()
	hub := realtime.NewHub(hubOpts...)
	db := inmemdb.Open(hub)

	incSvc := incident.NewService(inmemdb.NewIncidentRepository(db))
	attSvc := attendance.NewService(inmemdb.NewAttendanceRepository(db), conf.TimeZone)

	s := &Stack{
		Conf:       conf,
		Logger:     NewLogger(nil),
		Validate:   validate,
		Translator: translator,
		Hub:        hub,
		DB:         db,
		Incidents:  incSvc,
		Attendance: attSvc,
		Roster:     roster.NewService(inmemdb.NewRosterRepository(db)),
		Dispatcher: ingest.NewDispatcher(incSvc, attSvc, validate),
	}
	t.Cleanup(func() { _ = hub.Close() })
	return s
}

// CreateIncident dispatches a producer event and fails the test on error.
func CreateIncident(t *testing.T, s *Stack, action ingest.Action, data ingest.Payload) incident.Incident {
	res, err := s.Dispatcher.Dispatch(context.Background(), ingest.Event{Action: action, Data: data})
	if err != nil {
		t.Fatalf("CreateIncident() failed: %v", err)
	}
	if res.Incident == nil {
		t.Fatalf("CreateIncident(): %s did not create an incident", action)
	}
	return *res.Incident
}
