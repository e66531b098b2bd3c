package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"sales-dashboard/internal/ingest"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
)

// UploadOutcome describes what happened to an uploaded file.
type UploadOutcome struct {
	Session  Session `json:"session"`
	Accepted bool    `json:"accepted"`
	Records  int     `json:"records"`
	Notice   string  `json:"notice,omitempty"`
}

// Dashboard ties sessions to their datasets: sample data by default, an
// uploaded file once one parses.
type Dashboard struct {
	samples   *SampleSource
	sessions  *SessionStore
	analytics *Analytics
	metrics   *observability.Metrics
	logger    *slog.Logger
	started   time.Time
}

func NewDashboard(samples *SampleSource, sessions *SessionStore, analytics *Analytics, metrics *observability.Metrics, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		samples:   samples,
		sessions:  sessions,
		analytics: analytics,
		metrics:   metrics,
		logger:    logger,
		started:   time.Now(),
	}
}

func (d *Dashboard) Analytics() *Analytics {
	return d.analytics
}

// Session returns the session for id, starting it on sample data when it
// does not exist yet or has expired.
func (d *Dashboard) Session(ctx context.Context, id string) (Session, error) {
	if s, ok := d.sessions.Get(id); ok {
		return s, nil
	}
	return d.UseSample(ctx, id, "")
}

// UseSample points the session at the sample dataset for preset.
func (d *Dashboard) UseSample(ctx context.Context, id, preset string) (Session, error) {
	table, name, err := d.samples.Table(ctx, preset)
	if err != nil {
		return Session{}, err
	}
	s := Session{ID: id, Table: table, Source: SourceSample, Name: name}
	d.sessions.Put(s)
	return s, nil
}

// Upload parses r as the named file. A file that cannot be parsed leaves the
// session on sample data and the outcome carries a notice; only failures to
// produce sample data are returned as errors.
func (d *Dashboard) Upload(ctx context.Context, id, filename string, r io.Reader) (UploadOutcome, error) {
	ctx, span := observability.StartSpan(ctx, "dashboard.upload")
	defer span.End()

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	res, err := ingest.Parse(ctx, filename, r)
	if err != nil {
		observability.SpanError(span, err)
		d.logger.Warn("upload rejected, using sample data",
			"filename", filename,
			"error", err,
			"session_id", id,
		)
		if d.metrics != nil {
			d.metrics.RecordUpload(ctx, format, "fallback")
		}

		s, sampleErr := d.UseSample(ctx, id, "")
		if sampleErr != nil {
			return UploadOutcome{}, fmt.Errorf("fall back to sample data: %w", sampleErr)
		}
		s.Notice = fmt.Sprintf("Error loading file: %v. Showing sample data instead.", err)
		d.sessions.Put(s)
		return UploadOutcome{Session: s, Records: len(s.Table), Notice: s.Notice}, nil
	}

	s := Session{
		ID:             id,
		Table:          res.Table,
		Source:         SourceUpload,
		Name:           filepath.Base(filename),
		MalformedCells: res.MalformedCells,
	}
	if res.MalformedCells > 0 {
		s.Notice = fmt.Sprintf("%d numeric cells could not be read and were treated as 0.", res.MalformedCells)
	}
	d.sessions.Put(s)

	if d.metrics != nil {
		d.metrics.RecordUpload(ctx, res.Format, "accepted")
	}
	d.logger.Info("upload accepted",
		"filename", filename,
		"format", res.Format,
		"records", len(res.Table),
		"malformed_cells", res.MalformedCells,
		"session_id", id,
	)
	return UploadOutcome{Session: s, Accepted: true, Records: len(s.Table), Notice: s.Notice}, nil
}

// Snapshot computes the dashboard for the session's table restricted to r.
func (d *Dashboard) Snapshot(ctx context.Context, s Session, r models.DateRange, trigger string) *Snapshot {
	return d.analytics.Snapshot(ctx, s.Table, r, trigger)
}

// Stats is served on the admin endpoint.
func (d *Dashboard) Stats() map[string]any {
	return map[string]any{
		"sessions":       d.sessions.Len(),
		"sample_cache":   d.samples.cache.Stats(),
		"default_preset": d.samples.DefaultPreset(),
		"uptime":         time.Since(d.started).Round(time.Second).String(),
	}
}
