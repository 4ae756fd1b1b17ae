package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/attendance"
	"github.com/trezcool/masomo/core/incident"
	"github.com/trezcool/masomo/core/ingest"
	"github.com/trezcool/masomo/core/realtime"
	"github.com/trezcool/masomo/core/roster"
	metricsvc "github.com/trezcool/masomo/services/metrics"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		Dispatcher    *ingest.Dispatcher
		IncidentSvc   *incident.Service
		AttendanceSvc *attendance.Service
		RosterSvc     *roster.Service
		Broker        realtime.Broker
		Metrics       *metricsvc.Metrics
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(ctx context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		ServerDeps
		app      *echo.Echo
		errs     chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		ServerDeps: deps,
		app:        echo.New(),
		errs:       make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	if s.Metrics == nil {
		s.Metrics = metricsvc.New()
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.Conf.Debug

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Pre(corsMiddleware(s.Conf.Server.CORSAllowHeaders))
	if !s.Conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.Conf.Debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)

	s.app.GET("/", home)
	s.app.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))

	// producers call the camera feed function URL; /v1/camera-feed is the same endpoint
	s.app.POST("/functions/v1/camera-feed", s.ingest)

	v1 := s.app.Group("/v1")
	v1.POST("/camera-feed", s.ingest)
	registerIncidentAPI(v1, s.IncidentSvc)
	registerAttendanceAPI(v1, s.AttendanceSvc)
	registerRosterAPI(v1, s.RosterSvc)
	v1.GET("/realtime", s.realtime)
}

func (s *server) Start() {
	if err := s.app.Start(s.Conf.Server.Host); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errs <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	signal.Stop(s.shutdown)
	return s.app.Close()
}

func (s *server) Errors() <-chan error              { return s.errs }
func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Masomo Watch API!")
}
