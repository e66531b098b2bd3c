package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/observability"
)

func signalsRequest(signals string) *http.Request {
	target := "/sse/refresh-all"
	if signals != "" {
		target += "?datastar=" + url.QueryEscape(signals)
	}
	return sessionRequest(http.MethodGet, target, nil)
}

func TestSSEHandlers_HandleRefreshAll(t *testing.T) {
	h := NewSSEHandlers(newUploadedDashboard(t), observability.NopLogger())

	w := httptest.NewRecorder()
	h.HandleRefreshAll(w, signalsRequest(`{"startDate":"2024-01-01","endDate":"2024-01-31"}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	body := w.Body.String()
	assert.Equal(t, 7, strings.Count(body, "event: datastar-patch-elements"))
	assert.Contains(t, body, "event: datastar-patch-signals")

	for _, id := range []string{"kpis", "sales-trend", "top-products", "categories", "top-regions", "recent-transactions", "notice"} {
		assert.Contains(t, body, `id="`+id+`"`)
	}

	// January only: Apple and Cherry, $50 total. The start is clamped to the
	// first order.
	assert.Contains(t, body, "$50.00")
	assert.NotContains(t, body, "Banana")
	assert.Contains(t, body, `"startDate":"2024-01-10"`)
	assert.Contains(t, body, `"endDate":"2024-01-31"`)
}

func TestSSEHandlers_HandleRefreshAll_NoSignals(t *testing.T) {
	h := NewSSEHandlers(newUploadedDashboard(t), observability.NopLogger())

	w := httptest.NewRecorder()
	h.HandleRefreshAll(w, signalsRequest(""))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "$55.00")
	assert.Contains(t, body, `"startDate":"2024-01-10"`)
	assert.Contains(t, body, `"endDate":"2024-02-05"`)
}

func TestSSEHandlers_EmptyRange(t *testing.T) {
	h := NewSSEHandlers(newUploadedDashboard(t), observability.NopLogger())

	w := httptest.NewRecorder()
	h.HandleKPIs(w, signalsRequest(`{"startDate":"2024-01-11","endDate":"2024-01-19"}`))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "No data available for the selected date range.")
	assert.Contains(t, body, "$0.00")
}

func TestSSEHandlers_InvalidRange(t *testing.T) {
	h := NewSSEHandlers(newUploadedDashboard(t), observability.NopLogger())

	tests := []struct {
		name    string
		signals string
	}{
		{"start after end", `{"startDate":"2024-02-01","endDate":"2024-01-15"}`},
		{"bad date", `{"startDate":"Jan 1","endDate":""}`},
		{"malformed json", `{"startDate":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.HandleRefreshAll(w, signalsRequest(tt.signals))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotContains(t, w.Header().Get("Content-Type"), "text/event-stream")
		})
	}
}

func TestSSEHandlers_Sections(t *testing.T) {
	h := NewSSEHandlers(newUploadedDashboard(t), observability.NopLogger())

	tests := []struct {
		name    string
		handler http.HandlerFunc
		id      string
		want    string
	}{
		{"kpis", h.HandleKPIs, "kpis", "Total Revenue"},
		{"sales trend", h.HandleSalesTrend, "sales-trend", "<polyline"},
		{"top products", h.HandleTopProducts, "top-products", "Cherry"},
		{"categories", h.HandleCategories, "categories", "Fruit"},
		{"top regions", h.HandleTopRegions, "top-regions", "Denver"},
		{"recent", h.HandleRecent, "recent-transactions", "2024-02-05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, signalsRequest(""))

			require.Equal(t, http.StatusOK, w.Code)
			body := w.Body.String()
			assert.Equal(t, 1, strings.Count(body, "event: datastar-patch-elements"))
			assert.Contains(t, body, `id="`+tt.id+`"`)
			assert.Contains(t, body, tt.want)
		})
	}
}

func BenchmarkSSEHandlers_HandleRefreshAll(b *testing.B) {
	h := NewSSEHandlers(newUploadedDashboard(b), observability.NopLogger())

	for b.Loop() {
		w := httptest.NewRecorder()
		h.HandleRefreshAll(w, signalsRequest(""))
	}
}
