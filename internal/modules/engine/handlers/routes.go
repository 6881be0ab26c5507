package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all simulation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/simulation", func(r chi.Router) {
		// Run control
		r.Post("/start", h.HandleStart)
		r.Post("/pause", h.HandlePause)
		r.Post("/resume", h.HandleResume)
		r.Post("/reset", h.HandleReset)

		// Run inspection
		r.Get("/state", h.HandleState)
		r.Get("/timeline", h.HandleTimeline)
		r.Get("/logs", h.HandleLogs)
		r.Get("/summary", h.HandleSummary)
	})
}
