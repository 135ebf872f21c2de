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
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/tenancies/*      Tenancy records and edit sessions
  /api/scenarios/*      Demo scenarios
  /api/reset            Database reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Tenancy routes
		r.Route("/tenancies", func(r chi.Router) {
			r.Get("/", h.ListTenancies)
			r.Post("/", h.CreateTenancy)
			r.Get("/{id}", h.GetTenancy)
			r.Delete("/{id}", h.DeleteTenancy)

			// Edit session lifecycle + mutations
			r.Route("/{id}/session", func(r chi.Router) {
				r.Post("/", h.OpenSession)
				r.Get("/", h.GetSession)
				r.Delete("/", h.DiscardSession)

				r.Post("/payments", h.ApplyPayment)
				r.Post("/charges", h.InsertCharge)
				r.Delete("/charges/{chargeID}", h.DeleteCharge)
				r.Put("/charges/{chargeID}/amount", h.EditChargeAmount)
				r.Put("/charges/{chargeID}/due-date", h.EditChargeDueDate)
				r.Post("/charges/{chargeID}/extras", h.AddExtra)
				r.Delete("/charges/{chargeID}/extras/{index}", h.RemoveExtra)

				r.Post("/undo", h.Undo)
				r.Post("/redo", h.Redo)
				r.Post("/commit", h.Commit)
			})
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		// Reset (for development/demos)
		r.Post("/reset", h.ResetDatabase)

		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
