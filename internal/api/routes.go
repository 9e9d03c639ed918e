package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zoneinfo/server/internal/auth"
	"github.com/zoneinfo/server/internal/config"
)

// RouterDeps collects what the HTTP surface is built from.
type RouterDeps struct {
	Config   *config.Config
	Handlers *ZoneInfoHandlers
	Hub      *Hub
	Auth     *auth.Middleware
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// NewOriginPolicy builds the CORS and WebSocket origin policy from config. An
// empty allow list admits every origin in development only.
func NewOriginPolicy(cfg config.ServerConfig) OriginPolicy {
	return OriginPolicy{
		allowed:  cfg.AllowedOrigins,
		allowAll: len(cfg.AllowedOrigins) == 0 && cfg.IsDevelopment(),
	}
}

// NewRouter registers every route and wraps the mux in the shared
// middleware chain.
func NewRouter(deps RouterDeps) (http.Handler, error) {
	cfg := deps.Config
	publicLimit, err := RateLimitMiddleware(cfg.Server.RateLimit, deps.Logger)
	if err != nil {
		return nil, err
	}
	operatorLimit, err := OperatorRateLimitMiddleware("30-M", deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("operator rate limit: %w", err)
	}

	h := deps.Handlers
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.Handle("GET /api/zoneinfo", publicLimit(http.HandlerFunc(h.GetZoneInfo)))
	mux.Handle("GET /api/zoneinfo/categories", publicLimit(http.HandlerFunc(h.GetCategories)))
	mux.Handle("GET /api/zoneinfo/export", publicLimit(http.HandlerFunc(h.ExportSnapshot)))
	mux.Handle("GET /api/districts", publicLimit(http.HandlerFunc(h.GetDistricts)))

	control := func(fn http.HandlerFunc) http.Handler {
		return deps.Auth.Authenticate(deps.Auth.RequireRole(auth.RoleOperator)(operatorLimit(fn)))
	}
	mux.Handle("POST /api/zoneinfo/recount", control(h.Recount))
	mux.Handle("POST /api/zoneinfo/stop", control(h.Stop))

	if deps.Hub != nil {
		mux.Handle("GET /ws", publicLimit(http.HandlerFunc(deps.Hub.HandleWebSocket)))
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if cfg.Server.IsDevelopment() && h.profiler != nil {
		mux.HandleFunc("GET /api/debug/profile", h.Profile)
	}

	var handler http.Handler = mux
	handler = CORSMiddleware(NewOriginPolicy(cfg.Server))(handler)
	handler = auth.SecurityHeaders(cfg.Server.IsProduction())(handler)
	return handler, nil
}
