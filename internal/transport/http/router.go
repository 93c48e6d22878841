// Package httptransport assembles the public HTTP surface.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dataguard/internal/platform/health"
	"dataguard/pkg/platform/middleware/admin"
	"dataguard/pkg/platform/middleware/request"
)

const (
	requestTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// Registrar mounts tenant-scoped routes.
type Registrar interface {
	Register(r chi.Router)
}

// TenantDirectory mounts the tenant routes and wraps the scoped groups in its
// tenant check.
type TenantDirectory interface {
	Mount(r chi.Router, scoped ...func(chi.Router))
}

// Config is everything NewRouter needs.
type Config struct {
	AdminToken string
	Health     *health.Handler
	Metrics    *request.Metrics
	Tenants    TenantDirectory
	Scoped     []Registrar
}

// NewRouter wires probes and metrics at the root and the admin API under /v1.
func NewRouter(cfg Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(logger))
	r.Use(request.Latency(cfg.Metrics, routePattern))

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Use(admin.RequireToken(cfg.AdminToken, logger))
		r.Use(request.ContentTypeJSON)
		r.Use(request.BodyLimit(maxBodyBytes))

		scoped := make([]func(chi.Router), 0, len(cfg.Scoped))
		for _, reg := range cfg.Scoped {
			scoped = append(scoped, reg.Register)
		}
		r.Route("/tenants", func(r chi.Router) {
			cfg.Tenants.Mount(r, scoped...)
		})
	})

	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
