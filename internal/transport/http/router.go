// Package httptransport assembles the HTTP surface: versioned API
// routes, legacy aliases and the unauthenticated system endpoints.
package httptransport

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"onboardingportal/internal/platform/metrics"
	"onboardingportal/internal/platform/middleware"
	"onboardingportal/internal/transport/http/shared"
)

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

// Pinger reports backend liveness for the health endpoint.
type Pinger interface {
	Health(ctx context.Context) error
}

type dbPinger struct {
	db *sql.DB
}

func (p dbPinger) Health(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// DBPinger adapts a sql.DB to the health endpoint's Pinger.
func DBPinger(db *sql.DB) Pinger {
	return dbPinger{db: db}
}

// Info describes the running build for /api/info.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Router struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	db       Pinger
	cache    Pinger
	info     Info
	handlers []Registrar
}

func NewRouter(
	logger *slog.Logger,
	m *metrics.Metrics,
	db Pinger,
	cache Pinger,
	info Info,
	handlers ...Registrar,
) *Router {
	return &Router{
		logger:   logger,
		metrics:  m,
		db:       db,
		cache:    cache,
		info:     info,
		handlers: handlers,
	}
}

// Build wires all routes. Module handlers mount under /api/v1; a few
// legacy /api paths alias the same handlers for older clients.
func (rt *Router) Build() http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Recovery(rt.logger))
	root.Use(middleware.RequestID)
	root.Use(middleware.Logger(rt.logger))
	root.Use(middleware.Timeout(30 * time.Second))
	root.Use(middleware.Latency(rt.metrics))

	root.Get("/api/health", rt.handleHealth)
	root.Get("/api/info", rt.handleInfo)
	root.Method(http.MethodGet, "/metrics", promhttp.Handler())

	api := chi.NewRouter()
	for _, handler := range rt.handlers {
		handler.Register(api)
	}
	root.Mount("/api/v1", api)

	// Legacy aliases kept for clients that predate the versioned API.
	for _, path := range []string{
		"/auth/login",
		"/auth/check-email",
		"/auth/user",
		"/health-questionnaires/templates",
		"/gamification/progress",
	} {
		root.Handle("/api"+path, aliasTo(api, path))
	}

	return root
}

// aliasTo replays a request against the versioned router under a
// different path. The route context is reset so the inner router
// matches from scratch.
func aliasTo(api http.Handler, path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), chi.RouteCtxKey, (*chi.Context)(nil))
		aliased := r.Clone(ctx)
		aliased.URL.Path = path
		api.ServeHTTP(w, aliased)
	}
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := http.StatusOK
	checks := map[string]string{"database": "ok", "redis": "ok"}
	if err := rt.db.Health(ctx); err != nil {
		checks["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if err := rt.cache.Health(ctx); err != nil {
		checks["redis"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	shared.WriteJSON(w, status, map[string]any{
		"status": overall,
		"checks": checks,
	})
}

func (rt *Router) handleInfo(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, rt.info)
}
