package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/metric"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/report"
	"sales-dashboard/internal/server"
	"sales-dashboard/internal/services"
)

const (
	version       = "1.0.0"
	warmupTimeout = 30 * time.Second
)

type app struct {
	handler http.Handler
	samples *services.SampleSource
}

// newApp wires the services and HTTP stack. tel may be nil, in which case
// metrics go to the global no-op provider and /metrics is not mounted.
func newApp(cfg *config.Config, logger *slog.Logger, tel *observability.Telemetry) (*app, error) {
	var meter metric.Meter
	if tel != nil {
		meter = tel.Meter()
	}
	metrics, err := observability.NewMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	cache := services.NewSampleCache(cfg.Data.SampleCacheSize, cfg.Data.CacheDir, logger)
	samples, err := services.NewSampleSource(cfg.Data, cache, metrics, logger)
	if err != nil {
		return nil, err
	}
	sessions := services.NewSessionStore(cfg.Data.SessionTTL)
	analytics := services.NewAnalytics(metrics, logger, cfg.Data.RecentRows)
	dashboard := services.NewDashboard(samples, sessions, analytics, metrics, logger)

	renderer, err := report.NewRenderer(cfg.Report.PDFRenderer, cfg.Report.ChromeTimeout)
	if err != nil {
		return nil, err
	}

	srv := server.NewServer(server.Deps{
		Config:    cfg,
		Dashboard: dashboard,
		Renderer:  renderer,
		Metrics:   metrics,
		Telemetry: tel,
		Logger:    logger,
	})
	return &app{handler: srv, samples: samples}, nil
}

// warm generates the default sample table so the first visitor does not
// pay for it.
func (a *app) warm(ctx context.Context) (int, error) {
	table, _, err := a.samples.Table(ctx, "")
	if err != nil {
		return 0, err
	}
	return len(table), nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"config", cfg,
	)

	tel, err := observability.InitTelemetry(cfg.Telemetry, logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	a, err := newApp(cfg, logger, tel)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
	defer cancel()

	start := time.Now()
	records, err := a.warm(ctx)
	if err != nil {
		logger.Error("failed to generate sample data", "error", err)
		os.Exit(1)
	}
	logger.Info("sample data ready",
		"records", records,
		"preset", cfg.Data.SamplePreset,
		"duration", time.Since(start),
	)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, cfg.Server, logger)

	gracefulServer.RegisterShutdownHook("telemetry", func(ctx context.Context) error {
		logger.Info("flushing telemetry")
		return tel.Shutdown(ctx)
	})

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(sigCtx); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
