package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"StockCast/internal/domain/repository"
	"StockCast/internal/handler/api"
	"StockCast/internal/scheduler"
	pkgch "StockCast/pkg/clickhouse"
	"StockCast/pkg/config"
	xhttp "StockCast/pkg/http"
	pkgkafka "StockCast/pkg/kafka"
	applogger "StockCast/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    *api.PredictionsHandler
	sched      *scheduler.Scheduler
	chClient   *pkgch.Client
	producer   *pkgkafka.Producer
	recorder   repository.Recorder
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler *api.PredictionsHandler,
	sched *scheduler.Scheduler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	recorder repository.Recorder,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		handler:  handler,
		sched:    sched,
		chClient: chClient,
		producer: producer,
		recorder: recorder,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.sched != nil {
		if err := a.sched.Register(); err != nil {
			a.log.Error("scheduler register error", applogger.Error(err))
			return err
		}
		a.sched.Start()
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("prediction service started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Strings("watchlist", a.cfg.Watchlist))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	if a.sched != nil {
		a.sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.log.Warn("recorder close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
