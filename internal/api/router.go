// Package api provides the HTTP API for waypointd.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/wanderly/waypointd/internal/api/handler"
	"github.com/wanderly/waypointd/internal/api/middleware"
	"github.com/wanderly/waypointd/internal/api/models"
	"github.com/wanderly/waypointd/internal/scheduler"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Manager     *scheduler.Manager

	// Readiness reports subsystem health for GET /v1/ops/ready.
	Readiness func() []models.SubsystemStatus
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "waypointd"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Readiness)
	traversalHandler := handler.NewTraversalHandler(cfg.Manager)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min
	ingestRateLimit := middleware.RateLimitByIP(middleware.IngestRateLimit)     // 600 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Traversal lifecycle and narration control
		r.Route("/traversals", func(r chi.Router) {
			r.With(standardRateLimit).Post("/", traversalHandler.StartTraversal)

			r.Route("/{routeId}", func(r chi.Router) {
				r.With(standardRateLimit).Get("/", traversalHandler.GetTraversal)
				r.With(standardRateLimit).Post("/stop", traversalHandler.StopTraversal)
				r.With(standardRateLimit).Delete("/", traversalHandler.AbandonTraversal)
				r.With(standardRateLimit).Post("/reorder", traversalHandler.Reorder)

				// Device fixes arrive at walking-pace frequency.
				r.With(ingestRateLimit).Post("/fixes", traversalHandler.PushFix)

				r.Route("/narration", func(r chi.Router) {
					r.Use(standardRateLimit)
					r.Post("/pause", traversalHandler.PauseNarration)
					r.Post("/resume", traversalHandler.ResumeNarration)
					r.Post("/skip", traversalHandler.SkipNarration)
					r.Post("/skip-back", traversalHandler.SkipBackNarration)
					r.Post("/stop", traversalHandler.StopNarration)
				})
			})
		})
	})

	return r
}
