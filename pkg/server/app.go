package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"EconCast/internal/usecase"
	pkgch "EconCast/pkg/clickhouse"
	"EconCast/pkg/config"
	xhttp "EconCast/pkg/http"
	pkgkafka "EconCast/pkg/kafka"
	applogger "EconCast/pkg/logger"
	"EconCast/pkg/queue"

	"github.com/redis/go-redis/v9"
)

// Components groups the optional long-running parts of the application.
// Nil members are skipped.
type Components struct {
	Collector *usecase.SeriesCollector
	Consumer  *pkgkafka.Consumer
	Handler   pkgkafka.MessageHandler
	Warmup    *queue.RedisQueue
	Processor *usecase.SeriesProcessor
	Redis     *redis.Client
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	chClient   *pkgch.Client
	httpServer *xhttp.Server
	parts      Components
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	chClient *pkgch.Client,
	handler xhttp.Handler,
	parts Components,
) *App {
	srv := xhttp.NewServer(handler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithRequestTimeout(cfg.Server.RequestTimeout),
		xhttp.WithMetrics(metricsPath(cfg)),
		xhttp.WithLogger(l),
	)
	return &App{
		cfg:        cfg,
		l:          l,
		chClient:   chClient,
		httpServer: srv,
		parts:      parts,
	}
}

func metricsPath(cfg *config.Config) string {
	if !cfg.Metrics.Enabled {
		return ""
	}
	return cfg.Metrics.Path
}

// Server exposes the HTTP server, mainly for tests.
func (a *App) Server() *xhttp.Server { return a.httpServer }

// Start brings up every configured component without blocking.
func (a *App) Start(ctx context.Context) error {
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	if q := a.parts.Warmup; q != nil {
		if err := q.Start(ctx); err != nil {
			a.l.Error("warmup queue start error", applogger.Error(err))
			return err
		}
		a.l.Info("warmup queue started", applogger.String("queue", a.cfg.Forecast.Warmup.Queue))
	}

	if a.parts.Consumer != nil && a.parts.Handler != nil {
		a.parts.Consumer.RegisterHandler(a.parts.Handler)
		if err := a.parts.Consumer.Start(); err != nil {
			a.l.Error("kafka consumer error", applogger.Error(err))
			return err
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.parts.Handler.Topic()))
	}

	if c := a.parts.Collector; c != nil {
		if err := c.Start(ctx); err != nil {
			a.l.Error("collector error", applogger.Error(err))
			return err
		}
		a.l.Info("collector started",
			applogger.Strings("indicators", a.cfg.Ingest.Indicators),
			applogger.Duration("interval", a.cfg.Ingest.Interval))
	}
	return nil
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(ctx)
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.Shutdown(ctx)
}

// Shutdown stops components in reverse start order.
func (a *App) Shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if c := a.parts.Collector; c != nil {
		if err := c.Stop(shutdownCtx); err != nil {
			a.l.Warn("collector stop error", applogger.Error(err))
		}
	}

	if a.parts.Consumer != nil {
		if err := a.parts.Consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if q := a.parts.Warmup; q != nil {
		if err := q.Stop(shutdownCtx); err != nil {
			a.l.Warn("warmup queue stop error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	// closes the kafka publisher, if any
	if p := a.parts.Processor; p != nil {
		p.Close()
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if r := a.parts.Redis; r != nil {
		if err := r.Close(); err != nil {
			a.l.Warn("redis close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
