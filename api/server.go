/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend
  5. Metrics:    Request duration histogram

ROUTE GROUPS:
  /api/auth/*          Register, login, current account (public entry)
  /api/*               Everything else requires a bearer token
  /api/admin-only:     user management, settlement create/delete/complete,
                       advance delete, notification send, audit log
  /metrics             Prometheus scrape endpoint
  /api/health          Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Token validation
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dukabooks/settlement-engine/metrics"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(metrics.Middleware)

	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Group(func(r chi.Router) {
				r.Use(h.RequireAuth)
				r.Get("/me", h.Me)
			})
		})

		// Everything below requires a valid token.
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.Route("/users", func(r chi.Router) {
				r.Use(h.RequireAdmin)
				r.Get("/", h.ListUsers)
				r.Post("/", h.CreateUser)
				r.Put("/{id}", h.UpdateUser)
				r.Post("/{id}/toggle", h.ToggleUser)
			})

			r.Route("/members", func(r chi.Router) {
				r.Get("/", h.ListMembers)
				r.With(h.RequireAdmin).Put("/{name}/advance", h.UpdateMemberAdvance)
			})

			r.Route("/advances", func(r chi.Router) {
				r.Get("/", h.ListAdvances)
				r.Post("/", h.CreateAdvance)
				r.With(h.RequireAdmin).Delete("/{id}", h.DeleteAdvance)
			})

			r.Route("/settlements", func(r chi.Router) {
				r.Get("/", h.ListSettlements)
				r.Get("/export", h.ExportSettlements)
				r.Post("/preview", h.PreviewSettlement)
				r.With(h.RequireAdmin).Post("/", h.CreateSettlement)
				r.Get("/{id}", h.GetSettlement)
				r.Get("/{id}/export", h.ExportSettlement)
				r.With(h.RequireAdmin).Delete("/{id}", h.DeleteSettlement)
				r.With(h.RequireAdmin).Post("/{id}/complete", h.CompleteSettlement)
				r.Post("/{id}/items/{itemID}/received", h.MarkItemReceived)
			})

			r.Get("/debt", h.GetDebt)
			r.With(h.RequireAdmin).Put("/debt", h.UpdateDebt)
			r.Get("/stats", h.GetStats)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.ListNotifications)
				r.Post("/{id}/read", h.MarkNotificationRead)
				r.Post("/read-all", h.MarkAllNotificationsRead)
				r.With(h.RequireAdmin).Post("/send", h.SendNotification)
			})

			r.With(h.RequireAdmin).Get("/audit", h.ListAudit)
		})
	})

	return r
}
