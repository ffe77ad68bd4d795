package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds the dependency checks behind GET /api/health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	// Prometheus exposition (no auth, scraped by monitoring)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Credential endpoints (no auth, throttled per client)
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimitMiddleware)
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
		})

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/logout", s.handleLogout)
			r.Get("/user", s.handleCurrentUser)
			r.Post("/ws/ticket", s.handleWSTicket)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)
				r.Get("/stats", s.handleDeviceStats)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Patch("/", s.handleUpdateDevice)
					r.Delete("/", s.handleDeleteDevice)
					r.Post("/issue", s.handleIssueDevice)
					r.Post("/return", s.handleReturnDevice)
				})
			})
		})
	})

	return r
}

// handleHealth reports service health. The database decides the status
// code; optional components are listed for information only.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.components)+1)

	if s.database != nil {
		if err := s.database.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	degraded := false
	for name, c := range s.components {
		if err := c.HealthCheck(ctx); err != nil {
			checks[name] = "unavailable"
			degraded = true
			continue
		}
		checks[name] = "ok"
	}

	state := "ok"
	switch {
	case status != http.StatusOK:
		state = "unavailable"
	case degraded:
		state = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"status":  state,
		"version": s.version,
		"checks":  checks,
	})
}
