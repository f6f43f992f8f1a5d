package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hugh/go-assess/internal/api/handlers"
	"github.com/hugh/go-assess/internal/api/middleware"
	"github.com/hugh/go-assess/internal/artifacts"
	"github.com/hugh/go-assess/internal/auth"
	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/internal/metrics"
	"github.com/hugh/go-assess/internal/tasks"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          redis.UniversalClient
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	Queue          tasks.Enqueuer
	Store          artifacts.Store
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
	ReportsPerHour int      // Per-user limit on report requests
	CSRFSecret     string
	SecureCookies  bool
	ReportFormat   models.ReportFormat
	JobTimeout     time.Duration
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(metrics.Instrument)
	r.Use(middleware.Logging(cfg.Logger))

	// Rate limiting - applied globally to prevent abuse
	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CORS - restrict to configured origins, or allow all in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		// Default to localhost for development - configure in production
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.SecureCookies)
	orgHandler := handlers.NewOrganizationHandler(cfg.DB, cfg.AuthService)
	documentHandler := handlers.NewDocumentHandler(cfg.DB, cfg.Store, cfg.Logger)
	reportHandler := handlers.NewReportHandler(cfg.DB, cfg.Queue, cfg.Logger, cfg.ReportFormat, cfg.JobTimeout)
	riskHandler := handlers.NewRiskHandler(cfg.DB)

	reportsPerHour := cfg.ReportsPerHour
	if reportsPerHour <= 0 {
		reportsPerHour = 10
	}

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", metrics.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))
			r.Use(middleware.CurrentUser(cfg.AuthService))
			if cfg.CSRFSecret != "" {
				r.Use(middleware.CSRF(cfg.CSRFSecret))
			}

			// User endpoints
			r.Get("/me", authHandler.Me)
			r.Put("/me/preferences", authHandler.UpdatePreferences)

			// Everything below needs an organization
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireOrganization)

				r.Route("/organization", func(r chi.Router) {
					r.Get("/", orgHandler.Get)
					r.With(middleware.RequireRole("owner", "admin")).Put("/posture", orgHandler.UpdatePosture)
					r.With(middleware.RequireCapability(models.CapInvite)).Post("/members", orgHandler.AddMember)
					r.With(middleware.RequireCapability(models.CapEditPermissions)).Put("/members/{id}/capabilities", orgHandler.SetCapabilities)
				})

				// Source documents endpoints
				r.Route("/documents", func(r chi.Router) {
					r.Use(middleware.RequireCapability(models.CapGenerateReport))
					r.Get("/", documentHandler.List)
					r.Post("/", documentHandler.Upload)
					r.Delete("/{id}", documentHandler.Delete)
				})

				// Reports endpoints
				r.Route("/reports", func(r chi.Router) {
					r.With(
						middleware.RequireCapability(models.CapGenerateReport),
						middleware.RateLimitByUser(reportsPerHour, 3600),
					).Post("/", reportHandler.Create)
					r.Get("/", reportHandler.List)
					r.Get("/{id}", reportHandler.Get)
					r.With(middleware.RequireCapability(models.CapExportReport)).Get("/{id}/export", reportHandler.Export)
				})
				r.Get("/report-jobs/{id}", reportHandler.GetJob)

				// Risks endpoints
				r.Route("/risks", func(r chi.Router) {
					r.Use(middleware.RequireCapability(models.CapViewRisk))
					r.Get("/", riskHandler.List)
					r.Get("/{id}", riskHandler.Get)
					r.With(middleware.RequireCapability(models.CapResolveRisk)).Put("/{id}/archive", riskHandler.Archive)
				})
			})
		})
	})

	return &Router{r}
}
