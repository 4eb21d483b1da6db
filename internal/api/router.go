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
		r.Get("/health", s.handleHealth)

		// Transceiver endpoints
		r.Route("/transceivers", func(r chi.Router) {
			r.Get("/", s.handleListTransceivers)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTransceiver)
				r.Get("/state", s.handleGetState)
				r.Post("/refresh", s.handleRefresh)
				r.Get("/history", s.handleGetHistory)
				r.Get("/remediations", s.handleGetRemediations)

				r.Route("/prbs/{side}", func(r chi.Router) {
					r.Get("/", s.handleGetPrbsStats)
					r.Delete("/", s.handleClearPrbsStats)
				})
			})
		})

		// Fleet-wide remediation pause
		r.Post("/remediation/pause", s.handlePauseRemediation)
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
