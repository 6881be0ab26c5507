package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixtrade/replay/internal/domain"
	"github.com/helixtrade/replay/internal/events"
	"github.com/helixtrade/replay/internal/modules/engine"
	"github.com/helixtrade/replay/internal/modules/valuation"
)

type stubScenarios struct {
	scenarios map[string]*domain.Scenario
}

func (s *stubScenarios) Get(id string) (*domain.Scenario, error) {
	scenario, ok := s.scenarios[id]
	if !ok {
		return nil, fmt.Errorf("scenario %q not found", id)
	}
	return scenario, nil
}

type stubTimeline struct {
	records []domain.ActionRecord
}

func (s *stubTimeline) Reset(runID string) {}

func (s *stubTimeline) Record(runID string, tick int, agentLabel, actionKind, description string, impact *domain.ImpactDelta) domain.ActionRecord {
	rec := domain.ActionRecord{RunID: runID, Tick: tick, AgentLabel: agentLabel, ActionKind: actionKind, Description: description, Status: domain.ActionPending, Impact: impact}
	s.records = append(s.records, rec)
	return rec
}

func (s *stubTimeline) Snapshot() []domain.ActionRecord {
	return s.records
}

type stubLogs struct {
	entries []domain.LogEntry
}

func (s *stubLogs) Append(severity domain.LogSeverity, message string) {
	s.entries = append(s.entries, domain.LogEntry{Severity: severity, Message: message})
}

func (s *stubLogs) Clear() { s.entries = nil }

func (s *stubLogs) Snapshot() []domain.LogEntry { return s.entries }

type stubConsensus struct{}

func (stubConsensus) ConsensusScore() (float64, bool) { return 0, false }

func setupRouter(t *testing.T) (*chi.Mux, *engine.Controller) {
	t.Helper()

	timeline := &stubTimeline{}
	logs := &stubLogs{}
	controller := engine.NewController(
		engine.Config{},
		valuation.New(),
		timeline,
		logs,
		stubConsensus{},
		nil,
		events.NewBus(),
		zerolog.Nop(),
	)
	scenarios := &stubScenarios{scenarios: map[string]*domain.Scenario{
		"flash-crash": {
			ID:            "flash-crash",
			Name:          "Flash Crash",
			Archetype:     domain.ArchetypeCrash,
			DurationTicks: 5,
			TargetChanges: map[string]float64{"BTC": -40},
		},
	}}

	h := NewHandler(controller, scenarios, timeline, logs, zerolog.Nop())
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return r, controller
}

func postJSON(t *testing.T, r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleStart(t *testing.T) {
	r, controller := setupRouter(t)

	rec := postJSON(t, r, "/api/simulation/start", StartRequest{ScenarioID: "flash-crash"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.RunRunning, controller.Status())
}

func TestHandleStartUnknownScenario(t *testing.T) {
	r, _ := setupRouter(t)

	rec := postJSON(t, r, "/api/simulation/start", StartRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStartConflict(t *testing.T) {
	r, _ := setupRouter(t)

	rec := postJSON(t, r, "/api/simulation/start", StartRequest{ScenarioID: "flash-crash"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, r, "/api/simulation/start", StartRequest{ScenarioID: "flash-crash"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlePauseResumeCycle(t *testing.T) {
	r, controller := setupRouter(t)

	rec := postJSON(t, r, "/api/simulation/pause", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	postJSON(t, r, "/api/simulation/start", StartRequest{ScenarioID: "flash-crash"})

	rec = postJSON(t, r, "/api/simulation/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.RunPaused, controller.Status())

	rec = postJSON(t, r, "/api/simulation/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.RunRunning, controller.Status())
}

func TestHandleState(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/simulation/state", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data engine.Snapshot `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, domain.RunIdle, body.Data.Status)
}

func TestHandleSummaryBeforeCompletion(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/simulation/summary", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSummaryAfterCompletion(t *testing.T) {
	r, controller := setupRouter(t)

	postJSON(t, r, "/api/simulation/start", StartRequest{ScenarioID: "flash-crash"})
	for controller.Status() == domain.RunRunning {
		require.NoError(t, controller.Tick())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/simulation/summary", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data domain.RunSummary `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "flash-crash", body.Data.ScenarioID)
	assert.Greater(t, body.Data.UnhedgedLoss, 0.0)
}

func TestHandleTimelineAndLogs(t *testing.T) {
	r, controller := setupRouter(t)

	postJSON(t, r, "/api/simulation/start", StartRequest{ScenarioID: "flash-crash"})
	for controller.Status() == domain.RunRunning {
		require.NoError(t, controller.Tick())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/simulation/timeline", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/simulation/logs", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Greater(t, body.Data.Count, 0)
}
