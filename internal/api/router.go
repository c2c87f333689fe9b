package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint (no auth, conventionally at root)
	r.Handle("/metrics", promhttp.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// One-time server credential setup (no auth; refuses once configured)
		r.Post("/initialize", s.handleInitialize)

		// Token issue (no auth required)
		r.Post("/auth/token", s.handleToken)

		// Firmware download for device OTA updates (devices hold
		// broker credentials, not API tokens)
		r.Get("/firmware", s.handleFirmware)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/connected", s.handleConnectedDevices)
				r.Post("/init", s.handleInitDevice)
				r.Get("/{id}/logs", s.handleDeviceLogs)
				r.Post("/{id}/ota", s.handleDeviceOTA)
				r.Post("/{id}/restart", s.handleDeviceRestart)
			})

			// Watering control
			r.Route("/watering", func(r chi.Router) {
				r.Post("/schedule", s.handleSchedule)
				r.Post("/trigger", s.handleTrigger)
			})

			// Runtime metrics
			r.Get("/system", s.handleSystem)

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
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
