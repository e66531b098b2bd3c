package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

type PageHandlers struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
}

func NewPageHandlers(dashboard *services.Dashboard, logger *slog.Logger) *PageHandlers {
	return &PageHandlers{
		dashboard: dashboard,
		logger:    logger,
	}
}

// HandleDashboard renders the full page. A bad start/end query falls back to
// the whole data span rather than failing the page.
func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	sess, err := loadSession(ctx, h.dashboard)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}

	q := r.URL.Query()
	rng, err := resolveRange(sess.Table, q.Get("start"), q.Get("end"))
	if err != nil {
		h.logger.Debug("ignoring date query", "error", err)
		rng, _ = resolveRange(sess.Table, "", "")
	}
	snap := h.dashboard.Snapshot(ctx, sess, rng, "page")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	page := templates.Dashboard(templates.PageData{Snapshot: snap, Session: sess})
	if err := page.Render(ctx, w); err != nil {
		h.logger.Error("render dashboard", "error", err)
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}
