package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/handlers"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/report"
	"sales-dashboard/internal/services"
)

type Deps struct {
	Config    *config.Config
	Dashboard *services.Dashboard
	Renderer  report.Renderer
	Metrics   *observability.Metrics
	// Telemetry is optional; /metrics is only mounted when it exposes a handler.
	Telemetry *observability.Telemetry
	Logger    *slog.Logger
}

type Server struct {
	router       chi.Router
	logger       *slog.Logger
	apiHandlers  *handlers.APIHandlers
	sseHandlers  *handlers.SSEHandlers
	pageHandlers *handlers.PageHandlers
}

func NewServer(deps Deps) *Server {
	s := &Server{
		router: chi.NewRouter(),
		logger: deps.Logger,
		apiHandlers: handlers.NewAPIHandlers(deps.Dashboard, deps.Renderer, deps.Metrics, deps.Logger,
			deps.Config.MaxUploadBytes()),
		sseHandlers:  handlers.NewSSEHandlers(deps.Dashboard, deps.Logger),
		pageHandlers: handlers.NewPageHandlers(deps.Dashboard, deps.Logger),
	}
	s.setupMiddleware(deps)
	s.setupRoutes(deps)
	return s
}

func (s *Server) setupMiddleware(deps Deps) {
	cfg := deps.Config
	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	s.router.Use(
		middleware.Recovery(deps.Logger),
		middleware.RequestID(),
		middleware.Session(cfg.Data.SessionTTL),
		middleware.Logger(deps.Logger),
		middleware.Tracing(deps.Metrics),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.CSRF(cfg.Security, deps.Logger),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, deps.Logger),
	)
}

func (s *Server) setupRoutes(deps Deps) {
	// Dashboard routes
	s.router.Get("/", s.pageHandlers.HandleDashboard)
	s.router.Get("/health", s.apiHandlers.HandleHealth)
	s.router.Get("/admin/stats", s.apiHandlers.HandleStats)
	if deps.Telemetry != nil {
		if h := deps.Telemetry.MetricsHandler(); h != nil {
			s.router.Method(http.MethodGet, "/metrics", h)
		}
	}

	// REST API endpoints
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.apiHandlers.HandleUpload)
		r.Post("/source/sample", s.apiHandlers.HandleUseSample)
		r.Get("/date-range", s.apiHandlers.HandleDateRange)
		r.Get("/snapshot", s.apiHandlers.HandleSnapshot)
		r.Get("/kpis", s.apiHandlers.HandleKPIs)
		r.Get("/sales-by-date", s.apiHandlers.HandleSalesByDate)
		r.Get("/top-products", s.apiHandlers.HandleTopProducts)
		r.Get("/sales-by-category", s.apiHandlers.HandleSalesByCategory)
		r.Get("/top-regions", s.apiHandlers.HandleTopRegions)
		r.Get("/transactions", s.apiHandlers.HandleTransactions)
	})

	// Downloads
	s.router.Route("/export", func(r chi.Router) {
		r.Get("/csv", s.apiHandlers.HandleExportCSV)
		r.Get("/xlsx", s.apiHandlers.HandleExportXLSX)
		r.Get("/pdf", s.apiHandlers.HandleExportPDF)
	})

	// Datastar SSE endpoints
	s.router.Route("/sse", func(r chi.Router) {
		r.Get("/refresh-all", s.sseHandlers.HandleRefreshAll)
		r.Get("/kpis", s.sseHandlers.HandleKPIs)
		r.Get("/sales-trend", s.sseHandlers.HandleSalesTrend)
		r.Get("/top-products", s.sseHandlers.HandleTopProducts)
		r.Get("/categories", s.sseHandlers.HandleCategories)
		r.Get("/top-regions", s.sseHandlers.HandleTopRegions)
		r.Get("/recent", s.sseHandlers.HandleRecent)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, r, s.logger, errors.NotFound("route not found"))
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
