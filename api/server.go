/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for an admin frontend

ROUTE GROUPS:
  /api/admissions/*     Admission and payment operations
  /api/admin/*          Operational endpoints for external schedulers
  /healthz              Liveness probe

SECURITY NOTE:
  No authentication middleware. Identity and role headers (X-Actor,
  X-Actor-Role) are expected to be set by a trusted gateway in front of
  this service.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor", "X-Actor-Role"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/admissions", func(r chi.Router) {
			r.Get("/", h.ListAdmissions)
			r.Post("/", h.CreateAdmission)
			r.Get("/{id}", h.GetAdmission)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Post("/{id}/down-payment", h.PayDownPayment)
			r.Post("/{id}/clearance", h.ConfirmClearance)
			r.Post("/{id}/redivide", h.Redivide)
			r.Post("/{id}/correct", h.Correct)
			r.Get("/{id}/audit", h.GetAudit)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/mark-overdue", h.MarkOverdue)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
