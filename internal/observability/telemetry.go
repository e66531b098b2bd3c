package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"sales-dashboard/internal/config"
)

const instrumentationName = "sales-dashboard"

// Telemetry owns the trace and metric providers for the process.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metricsHandler http.Handler
	logger         *slog.Logger
}

// InitTelemetry installs global trace and meter providers. Metrics are
// exported in Prometheus format from a dedicated registry; traces go to
// stdout when configured, otherwise spans are sampled but not exported.
func InitTelemetry(cfg config.TelemetryConfig, logger *slog.Logger) (*Telemetry, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	)

	t := &Telemetry{logger: logger}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	switch cfg.TraceExporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	case "none", "":
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
	t.tracerProvider = sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(t.tracerProvider)

	if cfg.MetricsEnabled {
		registry := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		t.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		otel.SetMeterProvider(t.meterProvider)
		t.metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("telemetry initialized",
		"trace_exporter", cfg.TraceExporter,
		"metrics_enabled", cfg.MetricsEnabled,
	)

	return t, nil
}

// MetricsHandler serves the Prometheus scrape endpoint. It is nil when
// metrics are disabled.
func (t *Telemetry) MetricsHandler() http.Handler {
	return t.metricsHandler
}

func (t *Telemetry) Meter() metric.Meter {
	return otel.GetMeterProvider().Meter(instrumentationName)
}

// Shutdown flushes pending spans and metrics.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// StartSpan starts a span named operation under whatever span ctx carries.
func StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, operation, trace.WithAttributes(attrs...))
}

// SpanError marks span as failed with err.
func SpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
