package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the business instruments recorded by the dashboard.
type Metrics struct {
	httpRequests      metric.Int64Counter
	httpDuration      metric.Float64Histogram
	recomputations    metric.Int64Counter
	recomputeDuration metric.Float64Histogram
	uploads           metric.Int64Counter
	exports           metric.Int64Counter
	sampleGenerations metric.Int64Counter
	sampleRows        metric.Int64Counter
}

// NewMetrics creates the instruments on meter. A nil meter uses the global
// meter provider, which is a no-op until InitTelemetry runs.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}

	var (
		m   Metrics
		err error
	)

	if m.httpRequests, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.httpDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.recomputations, err = meter.Int64Counter("dashboard_recomputations_total",
		metric.WithDescription("Dashboard snapshots computed, by trigger")); err != nil {
		return nil, err
	}
	if m.recomputeDuration, err = meter.Float64Histogram("dashboard_recompute_duration_seconds",
		metric.WithDescription("Time spent filtering and aggregating a snapshot"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.uploads, err = meter.Int64Counter("dashboard_uploads_total",
		metric.WithDescription("Uploaded files, by outcome")); err != nil {
		return nil, err
	}
	if m.exports, err = meter.Int64Counter("dashboard_exports_total",
		metric.WithDescription("Exports served, by format")); err != nil {
		return nil, err
	}
	if m.sampleGenerations, err = meter.Int64Counter("sample_generations_total",
		metric.WithDescription("Synthetic datasets generated, by preset")); err != nil {
		return nil, err
	}
	if m.sampleRows, err = meter.Int64Counter("sample_rows_total",
		metric.WithDescription("Synthetic transactions generated")); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) RecordRecompute(ctx context.Context, trigger string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("trigger", trigger))
	m.recomputations.Add(ctx, 1, attrs)
	m.recomputeDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordUpload counts an upload; outcome is "accepted" or "fallback".
func (m *Metrics) RecordUpload(ctx context.Context, format, outcome string) {
	m.uploads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("format", format),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordExport(ctx context.Context, format string) {
	m.exports.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
}

func (m *Metrics) RecordSampleGeneration(ctx context.Context, preset string, rows int) {
	attrs := metric.WithAttributes(attribute.String("preset", preset))
	m.sampleGenerations.Add(ctx, 1, attrs)
	m.sampleRows.Add(ctx, int64(rows), attrs)
}
