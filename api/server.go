/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the dashboard

ROUTE GROUPS:
  /health                  Liveness
  /api/payroll/*           Payroll views
  /api/attribution         Channel attribution
  /api/anomalies           Anomaly report
  /api/schedule/audit      Schedule audit
  /api/funnel              Purchase funnel
  /api/audit-exceptions/*  Payment suppressions
  /api/recompute           Manual refresh
  /api/scenarios/*         Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/sales-engine/serve.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. allowedOrigins
// defaults to the local dashboard dev servers when empty.
func NewRouter(h *Handler, allowedOrigins ...string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/payroll", func(r chi.Router) {
			r.Get("/", h.GetPayroll)
			r.Get("/range", h.GetPayrollRange)
		})

		r.Get("/attribution", h.GetAttribution)
		r.Get("/anomalies", h.GetAnomalies)
		r.Get("/schedule/audit", h.GetScheduleAudit)
		r.Get("/funnel", h.GetFunnel)

		r.Route("/audit-exceptions", func(r chi.Router) {
			r.Get("/", h.ListAuditExceptions)
			r.Post("/", h.CreateAuditException)
			r.Delete("/{id}", h.DeleteAuditException)
		})

		r.Post("/recompute", h.Recompute)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
