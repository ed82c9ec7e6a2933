// Package core provides the API chassis for the GardenWatch service.
// It builds a chi router and enforces the cross-cutting concerns -- panic
// recovery, request correlation, security headers, structured request
// logging, CORS, metrics, and token authentication -- before requests reach
// domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gardenwatch/internal/config"
	"gardenwatch/internal/observability"
)

// Server encapsulates the chassis dependencies, allowing injection during
// testing and distinct configuration per environment.
type Server struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics

	// HealthProbes are checked concurrently by the /health endpoint.
	HealthProbes []HealthProbe

	// APIRegistrars mount domain handler routes under /api. Populated by the
	// application entry point; the indirection avoids an import cycle between
	// core and the handler packages.
	APIRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer performs a fail-fast check on critical dependencies and prepares
// the router. The caller mounts routes (via MountRoutes) after construction;
// the separation lets tests customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		router:  chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown logs the graceful termination of the chassis. Resource owners
// (database pool, cron schedulers) are closed by the entry point, which
// created them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
