package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sunvolt/loginguard/internal/auth"
	"github.com/sunvolt/loginguard/internal/handlers"
	"github.com/sunvolt/loginguard/internal/metrics"
	"github.com/sunvolt/loginguard/internal/middleware"
	pkghttp "github.com/sunvolt/loginguard/pkg/http"
)

// Dependencies is everything the router needs to serve the API
type Dependencies struct {
	Auth     *handlers.AuthHandler
	Sessions *handlers.SessionHandler
	Admin    *handlers.AdminHandler
	Health   *handlers.HealthHandler

	TokenManager *auth.TokenManager
	SessionStore auth.SessionChecker
	IdleTimeout  auth.IdleTimeout
	Users        auth.UserRepository

	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// RouterConfig holds the transport-level settings of the router
type RouterConfig struct {
	Env            string
	Cookies        auth.CookieConfig
	IP             *pkghttp.IPConfig
	AllowedOrigins []string
	LoginRateLimit int
	RequestTimeout time.Duration
}

// NewRouter builds the full middleware stack and registers all routes
func NewRouter(cfg RouterConfig, deps Dependencies) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(deps.Metrics.Middleware)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: cfg.Env}))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins)))
	router.Use(middleware.ClientID(cfg.Cookies))
	router.Use(middleware.SecureLogger(deps.Logger, cfg.IP))
	router.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	rateLimit := middleware.DefaultAuthRateLimit(cfg.IP)
	if cfg.LoginRateLimit > 0 {
		rateLimit.RequestsPerMinute = cfg.LoginRateLimit
	}

	RegisterRoutes(router, deps, rateLimit)
	return router
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies, rateLimit middleware.RateLimitConfig) {
	router.Get("/health", deps.Health.Health)
	if deps.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Public routes, scoped to the browser by the client id cookie
	router.Get("/auth/captcha", deps.Auth.Captcha)
	router.Post("/auth/captcha/refresh", deps.Auth.RefreshCaptcha)
	router.Get("/auth/lockout", deps.Auth.Lockout)
	router.With(middleware.RateLimitByIP(rateLimit)).Post("/auth/captcha/verify", deps.Auth.VerifyCaptcha)
	router.With(middleware.RateLimitByIP(rateLimit)).Post("/auth/login", deps.Auth.Login)

	// Protected routes - a live session is required
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(deps.TokenManager, deps.SessionStore, deps.IdleTimeout, deps.Logger))

		r.Post("/auth/logout", deps.Auth.Logout)
		r.Get("/sessions", deps.Sessions.List)
		r.Delete("/sessions/{id}", deps.Sessions.End)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(deps.Users, "admin"))
			r.Get("/admin/security-policy", deps.Admin.GetSecurityPolicy)
			r.Put("/admin/security-policy", deps.Admin.UpdateSecurityPolicy)
		})
	})
}
