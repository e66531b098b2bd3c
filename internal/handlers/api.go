package handlers

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/report"
	"sales-dashboard/internal/services"
)

const maxTransactionsLimit = 1000

type APIHandlers struct {
	dashboard *services.Dashboard
	renderer  report.Renderer
	metrics   *observability.Metrics
	logger    *slog.Logger
	maxUpload int64
	now       func() time.Time
}

func NewAPIHandlers(dashboard *services.Dashboard, renderer report.Renderer, metrics *observability.Metrics, logger *slog.Logger, maxUpload int64) *APIHandlers {
	return &APIHandlers{
		dashboard: dashboard,
		renderer:  renderer,
		metrics:   metrics,
		logger:    logger,
		maxUpload: maxUpload,
		now:       time.Now,
	}
}

// filtered loads the session and applies the start/end query. It writes the
// error response itself and reports false when the request cannot proceed.
func (h *APIHandlers) filtered(w http.ResponseWriter, r *http.Request) (services.Session, models.Table, models.DateRange, bool) {
	sess, err := loadSession(r.Context(), h.dashboard)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return services.Session{}, nil, models.DateRange{}, false
	}
	q := r.URL.Query()
	rng, err := resolveRange(sess.Table, q.Get("start"), q.Get("end"))
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return services.Session{}, nil, models.DateRange{}, false
	}
	return sess, services.FilterByDate(sess.Table, rng.Start, rng.End), rng, true
}

func (h *APIHandlers) HandleDateRange(w http.ResponseWriter, r *http.Request) {
	sess, err := loadSession(r.Context(), h.dashboard)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}

	data := map[string]any{"start": "", "end": "", "records": len(sess.Table)}
	if minDate, maxDate, ok := sess.Table.DateBounds(); ok {
		data["start"] = minDate.Format(models.DateLayout)
		data["end"] = maxDate.Format(models.DateLayout)
	}
	errors.WriteSuccess(w, r, data)
}

func (h *APIHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	_, table, _, ok := h.filtered(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, r, services.CalculateKPIs(table))
}

func (h *APIHandlers) HandleSalesByDate(w http.ResponseWriter, r *http.Request) {
	_, table, _, ok := h.filtered(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, r, services.SalesByDate(table))
}

func (h *APIHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	_, table, _, ok := h.filtered(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, r, services.TopProducts(table, services.TopProductsLimit))
}

func (h *APIHandlers) HandleSalesByCategory(w http.ResponseWriter, r *http.Request) {
	_, table, _, ok := h.filtered(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, r, services.SalesByCategory(table))
}

func (h *APIHandlers) HandleTopRegions(w http.ResponseWriter, r *http.Request) {
	_, table, _, ok := h.filtered(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, r, services.TopRegions(table, services.TopRegionsLimit))
}

func (h *APIHandlers) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	limit := services.RecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxTransactionsLimit {
			errors.WriteError(w, r, h.logger,
				errors.Validation(fmt.Sprintf("limit must be an integer between 1 and %d", maxTransactionsLimit)))
			return
		}
		limit = n
	}

	_, table, _, ok := h.filtered(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, r, services.RecentTransactions(table, limit))
}

// HandleSnapshot returns every dashboard view for the range in one response.
func (h *APIHandlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, _, rng, ok := h.filtered(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, r, h.dashboard.Snapshot(r.Context(), sess, rng, "api"))
}

func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	id := observability.GetSessionID(r.Context())
	if id == "" {
		errors.WriteError(w, r, h.logger, errors.BadRequest("missing session"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			errors.WriteError(w, r, h.logger,
				errors.PayloadTooLarge(fmt.Sprintf("file exceeds the %d MB upload limit", h.maxUpload>>20)))
			return
		}
		errors.WriteError(w, r, h.logger, errors.BadRequestWrap(err, "multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	outcome, err := h.dashboard.Upload(r.Context(), id, header.Filename, file)
	if err != nil {
		errors.WriteError(w, r, h.logger, errors.InternalWrap(err, "failed to load data"))
		return
	}

	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	errors.WriteSuccess(w, r, outcome)
}

func (h *APIHandlers) HandleUseSample(w http.ResponseWriter, r *http.Request) {
	id := observability.GetSessionID(r.Context())
	if id == "" {
		errors.WriteError(w, r, h.logger, errors.BadRequest("missing session"))
		return
	}

	sess, err := h.dashboard.UseSample(r.Context(), id, r.FormValue("preset"))
	if err != nil {
		if stderrors.Is(err, services.ErrUnknownPreset) {
			errors.WriteError(w, r, h.logger, errors.ValidationWrap(err, "unknown sample preset"))
			return
		}
		errors.WriteError(w, r, h.logger, errors.InternalWrap(err, "failed to generate sample data"))
		return
	}

	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	errors.WriteSuccess(w, r, map[string]any{
		"source":  sess.Source,
		"name":    sess.Name,
		"records": len(sess.Table),
	})
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")
}

func (h *APIHandlers) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	_, table, _, ok := h.filtered(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, table); err != nil {
		errors.WriteError(w, r, h.logger, errors.InternalWrap(err, "failed to export CSV"))
		return
	}
	h.recordExport(r, "csv")
	attachment(w, "text/csv; charset=utf-8", report.CSVFilename(h.now()))
	w.Write(buf.Bytes())
}

func (h *APIHandlers) HandleExportXLSX(w http.ResponseWriter, r *http.Request) {
	_, table, _, ok := h.filtered(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, table); err != nil {
		errors.WriteError(w, r, h.logger, errors.InternalWrap(err, "failed to export XLSX"))
		return
	}
	h.recordExport(r, "xlsx")
	attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", report.XLSXFilename(h.now()))
	w.Write(buf.Bytes())
}

func (h *APIHandlers) HandleExportPDF(w http.ResponseWriter, r *http.Request) {
	_, table, _, ok := h.filtered(w, r)
	if !ok {
		return
	}

	now := h.now()
	rep := report.BuildReport(table, services.CalculateKPIs(table), now)
	pdf, err := h.renderer.Render(r.Context(), rep)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			errors.WriteError(w, r, h.logger, errors.ServiceUnavailable("PDF renderer timed out, try again later"))
			return
		}
		errors.WriteError(w, r, h.logger, errors.InternalWrap(err, "failed to render PDF report"))
		return
	}
	h.recordExport(r, "pdf")
	attachment(w, "application/pdf", report.PDFFilename(now))
	w.Write(pdf)
}

func (h *APIHandlers) recordExport(r *http.Request, format string) {
	if h.metrics != nil {
		h.metrics.RecordExport(r.Context(), format)
	}
	h.logger.Info("export served",
		"format", format,
		"request_id", observability.GetRequestID(r.Context()),
	)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, r, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, r, h.dashboard.Stats(), map[string]string{"Cache-Control": "no-store"})
}
