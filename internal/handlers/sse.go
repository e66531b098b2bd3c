package handlers

import (
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/ui/templates"
)

// dateSignals are the date picker values bound on the page.
type dateSignals struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type SSEHandlers struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
}

func NewSSEHandlers(dashboard *services.Dashboard, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		dashboard: dashboard,
		logger:    logger,
	}
}

// snapshot reads the date signals and computes the dashboard for them. Errors
// are written as JSON before the event stream is opened.
func (h *SSEHandlers) snapshot(w http.ResponseWriter, r *http.Request, trigger string) (*services.Snapshot, services.Session, bool) {
	var signals dateSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		errors.WriteError(w, r, h.logger, errors.BadRequestWrap(err, "invalid datastar signals"))
		return nil, services.Session{}, false
	}

	sess, err := loadSession(r.Context(), h.dashboard)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return nil, services.Session{}, false
	}

	rng, err := resolveRange(sess.Table, signals.StartDate, signals.EndDate)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return nil, services.Session{}, false
	}
	return h.dashboard.Snapshot(r.Context(), sess, rng, trigger), sess, true
}

func (h *SSEHandlers) patch(sse *datastar.ServerSentEventGenerator, r *http.Request, components ...templ.Component) bool {
	for _, c := range components {
		html, err := templates.RenderString(r.Context(), c)
		if err != nil {
			h.logger.Error("render fragment", "error", err)
			return false
		}
		if err := sse.PatchElements(html); err != nil {
			h.logger.Debug("patch elements", "error", err)
			return false
		}
	}
	return true
}

func (h *SSEHandlers) section(w http.ResponseWriter, r *http.Request, trigger string, view func(*services.Snapshot) templ.Component) {
	snap, _, ok := h.snapshot(w, r, trigger)
	if !ok {
		return
	}

	sse := datastar.NewSSE(w, r)
	h.patch(sse, r, view(snap))

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, "kpis", templates.KPIs)
}

func (h *SSEHandlers) HandleSalesTrend(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, "sales-trend", templates.SalesTrend)
}

func (h *SSEHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, "top-products", templates.TopProducts)
}

func (h *SSEHandlers) HandleCategories(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, "categories", templates.Categories)
}

func (h *SSEHandlers) HandleTopRegions(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, "top-regions", templates.TopRegions)
}

func (h *SSEHandlers) HandleRecent(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, "recent", templates.RecentTransactions)
}

// HandleRefreshAll re-renders every view for the selected dates and writes
// the clamped range back to the date pickers.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	snap, sess, ok := h.snapshot(w, r, "date-change")
	if !ok {
		return
	}

	sse := datastar.NewSSE(w, r)
	if !h.patch(sse, r,
		templates.Notice(sess.Notice),
		templates.KPIs(snap),
		templates.SalesTrend(snap),
		templates.TopProducts(snap),
		templates.Categories(snap),
		templates.TopRegions(snap),
		templates.RecentTransactions(snap),
	) {
		return
	}

	if err := sse.MarshalAndPatchSignals(dateSignals{
		StartDate: formatDay(snap.Range, false),
		EndDate:   formatDay(snap.Range, true),
	}); err != nil {
		h.logger.Debug("patch signals", "error", err)
		return
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func formatDay(r models.DateRange, end bool) string {
	t := r.Start
	if end {
		t = r.End
	}
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateLayout)
}
