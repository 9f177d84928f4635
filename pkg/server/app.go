package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TradeScan/internal/handler/api"
	"TradeScan/internal/service/metrics"
	"TradeScan/internal/service/stream"
	pkgch "TradeScan/pkg/clickhouse"
	"TradeScan/pkg/config"
	xhttp "TradeScan/pkg/http"
	pkgkafka "TradeScan/pkg/kafka"
	applogger "TradeScan/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	router     *api.Router
	stream     *stream.Client
	chClient   *pkgch.Client
	producer   *pkgkafka.Producer
	httpServer *xhttp.Server
	l          *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	router *api.Router,
	sc *stream.Client,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	l *applogger.Logger,
) *App {
	return &App{
		cfg:      cfg,
		router:   router,
		stream:   sc,
		chClient: chClient,
		producer: producer,
		l:        l,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.Register()

	a.httpServer = xhttp.NewServer(a.router,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(a.l, 2*time.Second),
	)

	// Start the live trade tape when configured. The order path falls
	// back to REST lookups if the stream never comes up.
	if a.stream != nil {
		go func() {
			if err := a.stream.Connect(ctx); err != nil {
				a.l.Warn("stream connect failed", applogger.Error(err))
			} else if err := a.stream.Subscribe(ctx); err != nil {
				a.l.Warn("stream subscribe failed", applogger.Error(err))
			}
			a.stream.Run(ctx)
		}()
		a.l.Info("trade stream started", applogger.Strings("symbols", a.cfg.Scan.Symbols))
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown(context.Background())
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.l.Warn("stream close error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
