package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/remoteprint/remoteprint/internal/handler"
	"github.com/remoteprint/remoteprint/internal/middleware"
)

// RouterConfig carries the handlers and middleware settings for NewRouter.
type RouterConfig struct {
	Logger        *slog.Logger
	IsDevelopment bool

	Root      *handler.Handler
	Health    *handler.HealthHandler
	Metrics   *handler.MetricsHandler
	Functions *handler.FunctionsHandler
	Accounts  *handler.AccountHandler

	Authenticator   middleware.KeyAuthenticator
	MinAuthDuration time.Duration
	RateLimit       middleware.RateLimitConfig
	CORS            middleware.CORSConfig
	APIBodyLimit    int64
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Global middleware
	if cfg.RateLimit.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))

	// Probes, metrics and the public plan catalog
	r.Get("/", cfg.Root.Index)
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	r.Get("/metrics", cfg.Metrics.Metrics)
	r.Get("/plans", handler.ListPlans)

	// Edge function surface: open CORS, flat error bodies, per-IP limit.
	r.Route("/functions/v1", func(r chi.Router) {
		r.Use(middleware.FunctionCORS)
		r.Use(middleware.RateLimitIP(cfg.RateLimit))

		r.Post("/createPrintJob", cfg.Functions.CreatePrintJob)
		r.Options("/createPrintJob", cfg.Functions.Preflight)
		r.Post("/resetMonthlyCount", cfg.Functions.ResetMonthlyCount)
		r.Options("/resetMonthlyCount", cfg.Functions.Preflight)
	})

	bodyLimit := cfg.APIBodyLimit
	if bodyLimit <= 0 {
		bodyLimit = middleware.DefaultAPIBodyLimit
	}

	// Management API (API key, scopes, per-key limit)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORS))
		r.Use(middleware.MaxBodySize(bodyLimit))
		r.Use(middleware.Auth(middleware.AuthConfig{
			Logger:        logger,
			Authenticator: cfg.Authenticator,
			MinDuration:   cfg.MinAuthDuration,
		}))
		r.Use(middleware.RateLimitAPI(cfg.RateLimit))

		read := middleware.RequireRead()
		admin := middleware.RequireAdmin()

		r.With(read).Get("/account", cfg.Accounts.GetAccount)
		r.With(admin).Patch("/account", cfg.Accounts.UpdateAccount)
		r.With(read).Get("/dashboard", cfg.Accounts.GetDashboard)

		r.Route("/computers", func(r chi.Router) {
			r.With(read).Get("/", cfg.Accounts.ListComputers)
			r.With(admin).Post("/", cfg.Accounts.RegisterComputer)
			r.With(admin).Delete("/{id}", cfg.Accounts.DeleteComputer)
		})

		r.Route("/print-jobs", func(r chi.Router) {
			r.With(read).Get("/", cfg.Accounts.ListPrintJobs)
			r.With(read).Get("/{id}", cfg.Accounts.GetPrintJob)
		})

		r.Route("/api-keys", func(r chi.Router) {
			r.With(read).Get("/", cfg.Accounts.ListAPIKeys)
			r.With(admin).Post("/", cfg.Accounts.CreateAPIKey)
			r.With(admin).Delete("/{id}", cfg.Accounts.RevokeAPIKey)
		})
	})

	r.NotFound(cfg.Root.NotFound)
	r.MethodNotAllowed(cfg.Root.MethodNotAllowed)

	return r
}
