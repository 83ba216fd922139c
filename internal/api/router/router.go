package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/nudge-engine/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/nudge-engine/internal/http/middleware"
	"github.com/wolfman30/nudge-engine/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	NudgeRuns      *handlers.NudgeRunHandler
	OutcomeSignals *handlers.OutcomeSignalHandler
	System         *handlers.SystemHandler

	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Per-IP limit on the public surface; zero disables it.
	PublicRateLimit float64
	PublicRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (health, metrics, outcome signals)
	r.Group(func(public chi.Router) {
		if cfg.PublicRateLimit > 0 {
			public.Use(httpmiddleware.RateLimit(cfg.PublicRateLimit, cfg.PublicRateBurst))
		}
		public.Get("/health", handlers.HealthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.NudgeRuns != nil {
			public.Post("/patients/{patientID}/nudges/run", cfg.NudgeRuns.Run)
		}
		if cfg.OutcomeSignals != nil {
			public.Route("/nudges/{nudgeID}", func(r chi.Router) {
				r.Post("/viewed", cfg.OutcomeSignals.Viewed)
				r.Post("/action", cfg.OutcomeSignals.Action)
				r.Post("/completed", cfg.OutcomeSignals.Completed)
				r.Post("/health-score", cfg.OutcomeSignals.HealthScore)
				r.Post("/feedback", cfg.OutcomeSignals.Feedback)
			})
		}
	})

	// Admin routes (protected by JWT)
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.NudgeRuns != nil {
				admin.Post("/patients/{patientID}/nudges/debug-run", cfg.NudgeRuns.DebugRun)
			}
			if cfg.System != nil {
				admin.Get("/system", cfg.System.GetSystem)
			}
		})
	}

	return r
}
