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
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket (auth via single-use ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - the caller must be logged
			// in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Treatment area endpoints. Directory mutations are
			// admin-only; clinicians read.
			r.Route("/areas", func(r chi.Router) {
				r.Get("/", s.handleListAreas)
				r.With(s.requireAdmin).Post("/", s.handleCreateArea)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetArea)
					r.With(s.requireAdmin).Delete("/", s.handleDeleteArea)
				})
			})

			// Treatment station endpoints
			r.Route("/stations", func(r chi.Router) {
				r.Get("/", s.handleListStations)
				r.With(s.requireAdmin).Post("/", s.handleCreateStation)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetStation)
					r.With(s.requireAdmin).Patch("/", s.handleUpdateStation)
					r.With(s.requireAdmin).Delete("/", s.handleDeleteStation)
				})
			})

			// Device registry endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.With(s.requireAdmin).Post("/", s.handleCreateDevice)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.With(s.requireAdmin).Patch("/", s.handleUpdateDevice)
					r.With(s.requireAdmin).Delete("/", s.handleDeleteDevice)
				})
			})

			// Coordination endpoints
			r.Route("/coordination", func(r chi.Router) {
				r.Route("/stations/{stationID}", func(r chi.Router) {
					r.Get("/groups", s.handleListGroups)
					r.Post("/groups", s.handleCreateGroup)
					r.Get("/commands", s.handleListStationCommands)
					r.Post("/start-all", s.handleStartAll)
					r.Post("/stop-all", s.handleStopAll)
					r.Post("/emergency-stop", s.handleEmergencyStop)
					r.Post("/sync-parameters", s.handleSyncParameters)
				})

				r.Route("/groups/{groupID}", func(r chi.Router) {
					r.Put("/", s.handleUpdateGroup)
					r.Delete("/", s.handleDeleteGroup)
				})

				r.Post("/execute", s.handleExecute)

				r.Route("/commands/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetCommand)
					r.Post("/cancel", s.handleCancelCommand)
				})
			})
		})
	})

	return r
}

// handleHealth returns the server health status alongside the connection
// state of the broker and the time-series store.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.mqtt != nil {
		health["mqtt_connected"] = s.mqtt.IsConnected()
	}
	if s.influx != nil {
		health["influxdb_connected"] = s.influx.IsConnected()
	}
	writeJSON(w, http.StatusOK, health)
}
