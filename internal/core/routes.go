package core

import (
	"github.com/go-chi/chi/v5"
)

// defaultRedactedHeaders lists header names whose values are masked in request
// logs to prevent leakage of credentials or session tokens.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
}

// MountRoutes registers the global middleware chain, the domain handler
// routes under /api, and the top-level operational endpoints.
//
// Middleware ordering (strict):
//  1. Recoverer       - outermost, catches all panics.
//  2. RequestID       - correlation ID for logs and responses.
//  3. SecurityHeaders - present on every response, including errors.
//  4. RequestLogger   - structured logging with redacted headers.
//  5. CORS            - browser access control, answers preflights.
//  6. Metrics         - request latency and count recording.
//
// Authentication is not global: handler registrars wrap their own subtrees
// with AuthMiddleware, because the alert and weather lookups are public.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(s.MetricsMiddleware)

	s.router.Route("/api", func(r chi.Router) {
		for _, registrar := range s.APIRegistrars {
			registrar(r)
		}
	})

	s.router.Get("/health", s.HandleHealth)
	s.router.Method("GET", "/metrics", s.Metrics.Handler())
}

// corsAllowedOrigins returns the configured CORS origins, defaulting to the
// wildcard when unset.
func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Server.CORSOrigins) > 0 {
		return s.Config.Server.CORSOrigins
	}
	return []string{"*"}
}
