/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

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
  /api/users/*          Users, timesheets, ledger, per-user notifications
  /api/notifications/*  Notification maintenance and the periodic sweep
  /api/admin/*          Configuration and balance administration

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
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
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)

			// Timesheet
			r.Get("/{id}/week", h.GetWeekGrid)
			r.Post("/{id}/entries", h.UpsertEntry)
			r.Post("/{id}/rows/delete", h.DeleteRow)
			r.Post("/{id}/rows/reassign", h.ReassignRow)
			r.Post("/{id}/submit", h.SubmitWeek)

			// Ledger
			r.Get("/{id}/ledger", h.GetLedger)
			r.Get("/{id}/balance", h.GetBalance)
			r.Post("/{id}/recalculate", h.Recalculate)

			// Notifications (per user)
			r.Get("/{id}/notifications", h.ListNotifications)
			r.Post("/{id}/notifications/read-all", h.MarkAllNotificationsRead)
		})

		// Notification routes
		r.Route("/notifications", func(r chi.Router) {
			r.Post("/run", h.RunNotifications)
			r.Post("/{id}/read", h.MarkNotificationRead)
			r.Delete("/{id}", h.DeleteNotification)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/config", h.GetConfig)
			r.Put("/config", h.SetConfig)
			r.Put("/users/{id}/balance", h.SetInitialBalance)
		})
	})

	return r
}
