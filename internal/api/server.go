package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/moodle-analytics/internal/analytics"
	"github.com/terra-clan/moodle-analytics/internal/config"
	"github.com/terra-clan/moodle-analytics/internal/services"
	"github.com/terra-clan/moodle-analytics/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config    config.ServerConfig
	router    *chi.Mux
	dashboard analytics.Dashboard
	registry  *services.Registry
	reporting storage.StatisticsReader
	history   storage.SnapshotStore
}

// NewServer creates a new API server. reporting and history may be nil
// when the reporting database or Redis are not configured.
func NewServer(
	cfg config.ServerConfig,
	dashboard analytics.Dashboard,
	registry *services.Registry,
	reporting storage.StatisticsReader,
	history storage.SnapshotStore,
) *Server {
	if registry == nil {
		registry = services.NewRegistry()
	}
	s := &Server{
		config:    cfg,
		dashboard: dashboard,
		registry:  registry,
		reporting: reporting,
		history:   history,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/categories", s.handleListCategories)

		r.Route("/courses", func(r chi.Router) {
			r.Get("/", s.handleListCourses)
			r.Get("/top", s.handleTopCourses)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/", s.handleStats)
			r.Get("/database", s.handleDatabaseStats)
			r.Get("/history", s.handleStatsHistory)
		})
	})

	s.router = r
}
