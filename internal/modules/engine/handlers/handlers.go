// Package handlers provides HTTP handlers for simulation control.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixtrade/replay/internal/domain"
	"github.com/helixtrade/replay/internal/modules/engine"
)

// ScenarioLookup resolves a scenario by id.
type ScenarioLookup interface {
	Get(id string) (*domain.Scenario, error)
}

// TimelineReader exposes the current run's action records.
type TimelineReader interface {
	Snapshot() []domain.ActionRecord
}

// LogReader exposes the current run's log entries.
type LogReader interface {
	Snapshot() []domain.LogEntry
}

// Handler handles simulation HTTP requests
type Handler struct {
	controller *engine.Controller
	scenarios  ScenarioLookup
	timeline   TimelineReader
	logs       LogReader
	log        zerolog.Logger
}

// NewHandler creates a new simulation handler
func NewHandler(
	controller *engine.Controller,
	scenarios ScenarioLookup,
	timeline TimelineReader,
	logs LogReader,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		controller: controller,
		scenarios:  scenarios,
		timeline:   timeline,
		logs:       logs,
		log:        log.With().Str("handler", "simulation").Logger(),
	}
}

// StartRequest represents a request to start a run
type StartRequest struct {
	ScenarioID string `json:"scenario_id"`
	Seed       *int64 `json:"seed,omitempty"`
}

// HandleStart handles POST /api/simulation/start
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ScenarioID == "" {
		http.Error(w, "scenario_id is required", http.StatusBadRequest)
		return
	}

	scenario, err := h.scenarios.Get(req.ScenarioID)
	if err != nil {
		h.log.Warn().Err(err).Str("scenario_id", req.ScenarioID).Msg("Scenario not found")
		http.Error(w, "Scenario not found", http.StatusNotFound)
		return
	}

	if req.Seed != nil {
		err = h.controller.StartWithSeed(scenario, *req.Seed)
	} else {
		err = h.controller.Start(scenario)
	}
	if err != nil {
		if errors.Is(err, engine.ErrRunInProgress) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.log.Error().Err(err).Msg("Failed to start run")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": h.controller.Snapshot(),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandlePause handles POST /api/simulation/pause
func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Pause(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": h.controller.Snapshot(),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleResume handles POST /api/simulation/resume
func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Resume(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": h.controller.Snapshot(),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleReset handles POST /api/simulation/reset
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.controller.Reset()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": h.controller.Snapshot(),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleState handles GET /api/simulation/state
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": h.controller.Snapshot(),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleTimeline handles GET /api/simulation/timeline
func (h *Handler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	records := h.timeline.Snapshot()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"actions": records,
			"count":   len(records),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleLogs handles GET /api/simulation/logs
func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	entries := h.logs.Snapshot()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"entries": entries,
			"count":   len(entries),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleSummary handles GET /api/simulation/summary
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.controller.Summary()
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": summary,
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
