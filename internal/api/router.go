package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/yegors/skyboard/internal/config"
	"github.com/yegors/skyboard/internal/dashboard"
	"github.com/yegors/skyboard/pkg/logger"
)

const defaultRequestTimeout = 60 * time.Second

// Router wires the API handlers and the static file server
type Router struct {
	handler *Handler
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates a new router
func NewRouter(service *dashboard.Service, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler: NewHandler(service, cfg, log),
		config:  cfg,
		logger:  log.Named("router"),
	}
}

// Routes returns the HTTP handler for all routes
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	timeout := defaultRequestTimeout
	if rt.config.Server.WriteTimeoutSecs > 0 {
		timeout = time.Duration(rt.config.Server.WriteTimeoutSecs) * time.Second
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	if len(rt.config.Server.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.config.Server.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	h := rt.handler
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.GetHealth)
		r.Get("/config", h.GetConfig)

		r.Route("/snapshot", func(r chi.Router) {
			r.Get("/stats", h.GetSnapshotStats)
			r.Get("/aircraft", h.GetSnapshotAircraft)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/summary", h.GetHistorySummary)
			r.Get("/fleet", h.GetFleet)
			r.Get("/flights/{icao24}", h.GetFlightTrack)
		})

		r.Get("/airports", h.GetAirports)
		r.Get("/airports/{id}/arrivals", h.GetAirportArrivals)

		r.Get("/arrivals", h.GetArrivals)
		r.Get("/arrivals/all", h.GetAllArrivals)
	})

	if dir := rt.config.Server.StaticFilesDir; dir != "" {
		r.Handle("/*", NewStaticFileHandler(dir, rt.logger))
	}

	return r
}

// requestLogger logs every request at debug level
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Duration("duration", time.Since(start)))
	})
}
