package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/ingest"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/report"
	"sales-dashboard/internal/services"
)

const testSession = "3f9a1c2e-5b7d-4e8f-9a0b-1c2d3e4f5a6b"

// Two January orders then one small February order: revenue 55, growth -90%.
const threeRowCSV = "date,product_name,category,quantity,unit_price,total_amount,customer_id,customer_location\n" +
	"2024-01-10,Apple,Fruit,2,10,20,1001,Boston\n" +
	"2024-01-20,Cherry,Fruit,3,10,30,1002,Denver\n" +
	"2024-02-05,Banana,Fruit,1,5,5,1001,Boston\n"

func newTestDashboard(t testing.TB) *services.Dashboard {
	t.Helper()
	logger := observability.NopLogger()
	cfg := config.DataConfig{
		SampleSeed:      7,
		SamplePreset:    "standard",
		SampleSpanDays:  30,
		SessionTTL:      time.Hour,
		RecentRows:      100,
		SampleCacheSize: 2,
	}
	samples, err := services.NewSampleSource(cfg, services.NewSampleCache(cfg.SampleCacheSize, "", logger), nil, logger)
	require.NoError(t, err)

	return services.NewDashboard(samples, services.NewSessionStore(cfg.SessionTTL),
		services.NewAnalytics(nil, logger, cfg.RecentRows), nil, logger)
}

// newUploadedDashboard returns a dashboard whose test session holds the
// three-row table.
func newUploadedDashboard(t testing.TB) *services.Dashboard {
	t.Helper()
	d := newTestDashboard(t)
	out, err := d.Upload(context.Background(), testSession, "sales.csv", strings.NewReader(threeRowCSV))
	require.NoError(t, err)
	require.True(t, out.Accepted)
	return d
}

func newTestAPIHandlers(t *testing.T, d *services.Dashboard) *APIHandlers {
	t.Helper()
	h := NewAPIHandlers(d, report.FPDFRenderer{}, nil, observability.NopLogger(), 1<<20)
	h.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func sessionRequest(method, target string, body *bytes.Buffer) *http.Request {
	var r *http.Request
	if body == nil {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, body)
	}
	return r.WithContext(observability.WithSessionID(r.Context(), testSession))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	if data != nil && env.Success {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestNewAPIHandlers(t *testing.T) {
	d := newTestDashboard(t)
	handlers := NewAPIHandlers(d, report.FPDFRenderer{}, nil, observability.NopLogger(), 10)

	require.NotNil(t, handlers)
	assert.Same(t, d, handlers.dashboard)
	assert.Equal(t, int64(10), handlers.maxUpload)
}

func TestAPIHandlers_HandleKPIs(t *testing.T) {
	h := newTestAPIHandlers(t, newUploadedDashboard(t))

	w := httptest.NewRecorder()
	h.HandleKPIs(w, sessionRequest(http.MethodGet, "/api/kpis", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var kpis struct {
		TotalRevenue    float64 `json:"total_revenue"`
		TotalOrders     int     `json:"total_orders"`
		UniqueCustomers int     `json:"unique_customers"`
		AvgOrderValue   float64 `json:"avg_order_value"`
		MoMGrowth       float64 `json:"mom_growth"`
	}
	env := decode(t, w, &kpis)
	assert.True(t, env.Success)
	assert.InDelta(t, 55.0, kpis.TotalRevenue, 1e-9)
	assert.Equal(t, 3, kpis.TotalOrders)
	assert.Equal(t, 2, kpis.UniqueCustomers)
	assert.InDelta(t, 18.333, kpis.AvgOrderValue, 1e-3)
	assert.InDelta(t, -90.0, kpis.MoMGrowth, 1e-9)
}

func TestAPIHandlers_DateFilter(t *testing.T) {
	h := newTestAPIHandlers(t, newUploadedDashboard(t))

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantOrders int
	}{
		{"whole span", "", http.StatusOK, 3},
		{"january only", "?start=2024-01-01&end=2024-01-31", http.StatusOK, 2},
		{"single day", "?start=2024-02-05&end=2024-02-05", http.StatusOK, 1},
		{"clamped to span", "?start=1999-01-01&end=2099-01-01", http.StatusOK, 3},
		{"gap between orders", "?start=2024-01-11&end=2024-01-19", http.StatusOK, 0},
		{"start after last day", "?start=2030-01-01", http.StatusOK, 1},
		{"end before first day", "?end=1999-01-01", http.StatusOK, 1},
		{"both past the span", "?start=2030-01-01&end=2031-01-01", http.StatusOK, 1},
		{"start after end", "?start=2024-02-01&end=2024-01-01", http.StatusBadRequest, 0},
		{"bad date", "?end=yesterday", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.HandleKPIs(w, sessionRequest(http.MethodGet, "/api/kpis"+tt.query, nil))

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			var kpis struct {
				TotalOrders int `json:"total_orders"`
			}
			env := decode(t, w, &kpis)
			if tt.wantStatus != http.StatusOK {
				require.NotNil(t, env.Error)
				assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
				return
			}
			assert.Equal(t, tt.wantOrders, kpis.TotalOrders)
		})
	}
}

func TestAPIHandlers_HandleTopProducts(t *testing.T) {
	h := newTestAPIHandlers(t, newUploadedDashboard(t))

	w := httptest.NewRecorder()
	h.HandleTopProducts(w, sessionRequest(http.MethodGet, "/api/top-products", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var products []struct {
		ProductName string  `json:"product_name"`
		Revenue     float64 `json:"revenue"`
	}
	decode(t, w, &products)
	require.Len(t, products, 3)
	assert.Equal(t, "Banana", products[0].ProductName)
	assert.Equal(t, "Cherry", products[2].ProductName, "largest product comes last")
}

func TestAPIHandlers_Aggregations(t *testing.T) {
	h := newTestAPIHandlers(t, newUploadedDashboard(t))

	tests := []struct {
		name    string
		path    string
		handler http.HandlerFunc
		wantLen int
	}{
		{"sales by date", "/api/sales-by-date", h.HandleSalesByDate, 3},
		{"sales by category", "/api/sales-by-category", h.HandleSalesByCategory, 1},
		{"top regions", "/api/top-regions", h.HandleTopRegions, 2},
		{"transactions", "/api/transactions", h.HandleTransactions, 3},
		{"transactions limited", "/api/transactions?limit=1", h.HandleTransactions, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, sessionRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, http.StatusOK, w.Code)

			var items []json.RawMessage
			decode(t, w, &items)
			assert.Len(t, items, tt.wantLen)
		})
	}
}

func TestAPIHandlers_HandleTransactions_InvalidLimit(t *testing.T) {
	h := newTestAPIHandlers(t, newUploadedDashboard(t))

	for _, limit := range []string{"0", "-3", "abc", "100000"} {
		w := httptest.NewRecorder()
		h.HandleTransactions(w, sessionRequest(http.MethodGet, "/api/transactions?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
	}
}

func TestAPIHandlers_HandleDateRange(t *testing.T) {
	h := newTestAPIHandlers(t, newUploadedDashboard(t))

	w := httptest.NewRecorder()
	h.HandleDateRange(w, sessionRequest(http.MethodGet, "/api/date-range", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rng map[string]any
	decode(t, w, &rng)
	assert.Equal(t, "2024-01-10", rng["start"])
	assert.Equal(t, "2024-02-05", rng["end"])
	assert.EqualValues(t, 3, rng["records"])
}

func TestAPIHandlers_MissingSession(t *testing.T) {
	h := newTestAPIHandlers(t, newTestDashboard(t))

	w := httptest.NewRecorder()
	h.HandleKPIs(w, httptest.NewRequest(http.MethodGet, "/api/kpis", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestAPIHandlers_HandleUpload(t *testing.T) {
	tests := []struct {
		name         string
		filename     string
		content      string
		wantAccepted bool
		wantNotice   string
	}{
		{"csv accepted", "sales.csv", threeRowCSV, true, ""},
		{"missing column falls back", "sales.csv", "date,product_name\n2024-01-01,Apple\n", false, "Showing sample data instead"},
		{"unsupported type falls back", "sales.pdf", "%PDF-1.4", false, "Error loading file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestAPIHandlers(t, newTestDashboard(t))
			body, contentType := multipartUpload(t, tt.filename, tt.content)

			r := sessionRequest(http.MethodPost, "/api/upload", body)
			r.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			h.HandleUpload(w, r)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var out struct {
				Accepted bool   `json:"accepted"`
				Records  int    `json:"records"`
				Notice   string `json:"notice"`
			}
			decode(t, w, &out)
			assert.Equal(t, tt.wantAccepted, out.Accepted)
			assert.Positive(t, out.Records)
			if tt.wantNotice == "" {
				assert.Empty(t, out.Notice)
			} else {
				assert.Contains(t, out.Notice, tt.wantNotice)
			}
		})
	}
}

func TestAPIHandlers_HandleUpload_TooLarge(t *testing.T) {
	h := newTestAPIHandlers(t, newTestDashboard(t))
	h.maxUpload = 64

	body, contentType := multipartUpload(t, "sales.csv", threeRowCSV+strings.Repeat("2024-02-05,Banana,Fruit,1,5,5,1001,Boston\n", 50))
	r := sessionRequest(http.MethodPost, "/api/upload", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.HandleUpload(w, r)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAPIHandlers_HandleUpload_FormPostRedirects(t *testing.T) {
	h := newTestAPIHandlers(t, newTestDashboard(t))

	body, contentType := multipartUpload(t, "sales.csv", threeRowCSV)
	r := sessionRequest(http.MethodPost, "/api/upload", body)
	r.Header.Set("Content-Type", contentType)
	r.Header.Set("Accept", "text/html,application/xhtml+xml")
	w := httptest.NewRecorder()
	h.HandleUpload(w, r)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestAPIHandlers_HandleUseSample(t *testing.T) {
	h := newTestAPIHandlers(t, newUploadedDashboard(t))

	r := sessionRequest(http.MethodPost, "/api/source/sample", bytes.NewBufferString("preset=premium"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.HandleUseSample(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out map[string]any
	decode(t, w, &out)
	assert.Equal(t, services.SourceSample, out["source"])
	assert.Equal(t, "premium", out["name"])

	r = sessionRequest(http.MethodPost, "/api/source/sample", bytes.NewBufferString("preset=deluxe"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	h.HandleUseSample(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIHandlers_HandleExportCSV(t *testing.T) {
	h := newTestAPIHandlers(t, newUploadedDashboard(t))

	w := httptest.NewRecorder()
	h.HandleExportCSV(w, sessionRequest(http.MethodGet, "/export/csv?start=2024-01-01&end=2024-01-31", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="sales_data_20240301.csv"`, w.Header().Get("Content-Disposition"))

	res, err := ingest.ParseCSV(context.Background(), w.Body)
	require.NoError(t, err)
	assert.Len(t, res.Table, 2, "export honours the date filter")
}

func TestAPIHandlers_HandleExportXLSX(t *testing.T) {
	h := newTestAPIHandlers(t, newUploadedDashboard(t))

	w := httptest.NewRecorder()
	h.HandleExportXLSX(w, sessionRequest(http.MethodGet, "/export/xlsx", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "sales_data_20240301.xlsx")

	res, err := ingest.ParseXLSX(context.Background(), bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Len(t, res.Table, 3)
}

func TestAPIHandlers_HandleExportPDF(t *testing.T) {
	h := newTestAPIHandlers(t, newUploadedDashboard(t))

	w := httptest.NewRecorder()
	h.HandleExportPDF(w, sessionRequest(http.MethodGet, "/export/pdf", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "sales_report_20240301.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}

type slowRenderer struct{}

func (slowRenderer) Render(_ context.Context, _ *report.Report) ([]byte, error) {
	return nil, context.DeadlineExceeded
}

func TestAPIHandlers_HandleExportPDF_Timeout(t *testing.T) {
	h := newTestAPIHandlers(t, newUploadedDashboard(t))
	h.renderer = slowRenderer{}

	w := httptest.NewRecorder()
	h.HandleExportPDF(w, sessionRequest(http.MethodGet, "/export/pdf", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	h := newTestAPIHandlers(t, newTestDashboard(t))

	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]string
	decode(t, w, &health)
	assert.Equal(t, "healthy", health["status"])
	assert.NotEmpty(t, health["timestamp"])
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	d := newUploadedDashboard(t)
	h := newTestAPIHandlers(t, d)

	w := httptest.NewRecorder()
	h.HandleStats(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]any
	decode(t, w, &stats)
	assert.EqualValues(t, 1, stats["sessions"])
	assert.Equal(t, "standard", stats["default_preset"])
}

func BenchmarkHandleKPIs(b *testing.B) {
	logger := observability.NopLogger()
	cfg := config.DataConfig{SampleSeed: 42, SamplePreset: "standard", SampleSpanDays: 365, SampleCacheSize: 1}
	samples, err := services.NewSampleSource(cfg, services.NewSampleCache(1, "", logger), nil, logger)
	require.NoError(b, err)
	d := services.NewDashboard(samples, services.NewSessionStore(time.Hour),
		services.NewAnalytics(nil, logger, 100), nil, logger)
	h := NewAPIHandlers(d, report.FPDFRenderer{}, nil, logger, 1<<20)

	for b.Loop() {
		w := httptest.NewRecorder()
		h.HandleKPIs(w, sessionRequest(http.MethodGet, "/api/kpis", nil))
	}
}
