package main

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/masomo/apps/api/echo"
	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/attendance"
	"github.com/trezcool/masomo/core/incident"
	"github.com/trezcool/masomo/core/ingest"
	"github.com/trezcool/masomo/core/realtime"
	"github.com/trezcool/masomo/core/roster"
	logsvc "github.com/trezcool/masomo/services/logger"
	metricsvc "github.com/trezcool/masomo/services/metrics"
	"github.com/trezcool/masomo/services/realtime/natsbroker"
	"github.com/trezcool/masomo/services/realtime/pgfeed"
	"github.com/trezcool/masomo/storage/database"
	inmemdb "github.com/trezcool/masomo/storage/database/inmem"
	sqlxrepos "github.com/trezcool/masomo/storage/database/sqlx"
)

type (
	broker interface {
		realtime.Broker
		io.Closer
	}

	repositories struct {
		incidents  incident.Repository
		attendance attendance.Repository
		roster     roster.Repository
		closer     func() error
	}
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := newLogger("API : ", conf)
	dbLogger := newLogger("DB : ", conf)
	feedLogger := newLogger("FEED : ", conf)

	metrics := metricsvc.New()

	// set up realtime broker
	bkr, err := setUpBroker(conf, metrics, feedLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up realtime broker: %v", err), err)
	}

	// set up DB
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, err := setUpDB(ctx, conf, bkr)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.closer(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// committed rows reach the broker through LISTEN/NOTIFY unless the store publishes them itself
	if !conf.Database.IsMemory() {
		feed := pgfeed.New(
			database.DSN(conf.Database.Name, false, conf), conf.Realtime.Channel, bkr, feedLogger,
			pgfeed.OnRelay(metrics.ObserveRelay),
		)
		go func() {
			if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				feedLogger.Error(fmt.Sprintf("change feed stopped: %v", err), err)
			}
		}()
	}

	// set up services
	incSvc := incident.NewService(repos.incidents)
	attSvc := attendance.NewService(repos.attendance, conf.TimeZone)
	rosterSvc := roster.NewService(repos.roster)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	incident.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("realtime").Set(conf.Realtime.Driver)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			Validate:      validate,
			Translator:    translator,
			Dispatcher:    ingest.NewDispatcher(incSvc, attSvc, validate),
			IncidentSvc:   incSvc,
			AttendanceSvc: attSvc,
			RosterSvc:     rosterSvc,
			Broker:        bkr,
			Metrics:       metrics,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// stop the feed and end the realtime streams, or Shutdown would wait on them
		cancel()
		if err = bkr.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing realtime broker: %v", err), err)
		}

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer scancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(sctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func newLogger(prefix string, conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	return logger
}

func setUpBroker(conf *core.Config, metrics *metricsvc.Metrics, logger core.Logger) (broker, error) {
	switch conf.Realtime.Driver {
	case "nats":
		b, err := natsbroker.Connect(conf.Realtime.NATSURL, natsbroker.DefaultPrefix, conf.Realtime.BufferSize, logger)
		if err != nil {
			return nil, err
		}
		b.OnDrop(metrics.ObserveDrop)
		return b, nil
	case "memory", "postgres":
		return realtime.NewHub(
			realtime.WithBufferSize(conf.Realtime.BufferSize),
			realtime.WithDropHook(metrics.ObserveDrop),
		), nil
	default:
		return nil, errors.Errorf("unknown realtime driver %q", conf.Realtime.Driver)
	}
}

func setUpDB(ctx context.Context, conf *core.Config, publisher realtime.Broker) (*repositories, error) {
	if conf.Database.IsMemory() {
		db := inmemdb.Open(publisher)
		return &repositories{
			incidents:  inmemdb.NewIncidentRepository(db),
			attendance: inmemdb.NewAttendanceRepository(db),
			roster:     inmemdb.NewRosterRepository(db),
			closer:     func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(ctx, db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &repositories{
		incidents:  sqlxrepos.NewIncidentRepository(db),
		attendance: sqlxrepos.NewAttendanceRepository(db),
		roster:     sqlxrepos.NewRosterRepository(db),
		closer:     db.Close,
	}, nil
}
