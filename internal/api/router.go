package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/euskotrips/euskotrips/internal/middleware"
)

// ServiceName identifies the API in the root response and in server spans.
const ServiceName = "euskotrips-api"

// RouterConfig holds everything the HTTP surface needs.
type RouterConfig struct {
	Rank   *RankHandlers
	Health *HealthHandlers

	// Registry backs GET /metrics; nil disables the endpoint.
	Registry     *prometheus.Registry
	MetricsToken string

	// Metrics records HTTP and rate limit metrics; nil disables them.
	Metrics *middleware.Metrics

	// RateLimitStore enables rate limiting of /rank when set.
	RateLimitStore middleware.RateLimitStore
	RateLimit      middleware.RateLimitConfig

	Logger  *slog.Logger
	Version string
}

// NewRouter wires the middleware chain and routes:
// RequestID -> Tracing -> Logging -> HTTPMetrics -> Recoverer -> handler.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.Logging(logger))
	if cfg.Metrics != nil {
		r.Use(middleware.HTTPMetrics(cfg.Metrics))
	}
	r.Use(chimiddleware.Recoverer)

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	r.Get("/", rootHandler(cfg.Version))
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)

	r.Group(func(r chi.Router) {
		if cfg.RateLimitStore != nil {
			r.Use(middleware.RateLimiter(cfg.RateLimitStore, cfg.RateLimit, middleware.IPKeyFunc(), cfg.Metrics))
		}
		r.Get("/rank", cfg.Rank.Rank)
	})

	if cfg.Registry != nil {
		r.With(InternalAuthMiddleware(cfg.MetricsToken)).
			Method(http.MethodGet, "/metrics", MetricsHandler(cfg.Registry))
	}

	return r
}

func rootHandler(version string) http.HandlerFunc {
	if version == "" {
		version = "dev"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{
			"service": ServiceName,
			"version": version,
		})
	}
}
