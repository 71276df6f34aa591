package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Delete("/", s.handleDeleteDevice)
					r.Post("/approve", s.handleApproveDevice)
					r.Post("/command", s.handleSendCommand)
					r.Put("/secret", s.handleSetSecret)
					r.Get("/telemetry", s.handleDeviceTelemetry)
					r.Get("/events", s.handleDeviceEvents)
					r.Get("/logs", s.handleDeviceLogs)
					r.Get("/location", s.handleDeviceLocation)
				})
			})

			// Cross-device history
			r.Route("/logs", func(r chi.Router) {
				r.Get("/", s.handleRecentLogs)
				r.Delete("/", s.handlePurgeLogs)
			})
			r.Delete("/telemetry", s.handlePurgeTelemetry)

			// Customer and provisioning endpoints
			r.Route("/customers", func(r chi.Router) {
				r.Get("/", s.handleListCustomers)
				r.Post("/", s.handleCreateCustomer)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetCustomer)
					r.Delete("/", s.handleDeleteCustomer)
					r.Get("/codes", s.handleListCodes)
					r.Post("/codes", s.handleCreateCode)
					r.Get("/devices", s.handleListAssignments)
				})
			})
			r.Delete("/codes/{code}", s.handleDeleteCode)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
