// Package handlers provides HTTP handlers for the scenario catalog.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/helixtrade/replay/internal/domain"
	"github.com/helixtrade/replay/internal/modules/scenario"
)

// Handler handles scenario catalog HTTP requests
type Handler struct {
	service *scenario.Service
	log     zerolog.Logger
}

// NewHandler creates a new scenario handler
func NewHandler(service *scenario.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "scenario").Logger(),
	}
}

// HandleList handles GET /api/scenarios
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	scenarios, err := h.service.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list scenarios")
		http.Error(w, "Failed to list scenarios", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"scenarios": scenarios,
			"count":     len(scenarios),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGet handles GET /api/scenarios/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s, err := h.service.Get(id)
	if err != nil {
		http.Error(w, "Scenario not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": s,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleCreate handles POST /api/scenarios
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var s domain.Scenario
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Save(&s); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": s,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
