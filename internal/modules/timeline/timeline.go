// Package timeline owns the ordered, append-only list of agent-action
// records produced during a run, and drives each record through its
// lifecycle.
package timeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixtrade/replay/internal/domain"
	"github.com/helixtrade/replay/internal/events"
)

// Config holds timeline lifecycle timing.
type Config struct {
	// ExecuteDelay is the fixed delay between pending and executing.
	ExecuteDelay time.Duration
	// ProofTimeout bounds the artifact request; an action whose request
	// exceeds it moves to failed.
	ProofTimeout time.Duration
}

// DefaultConfig returns the production lifecycle timing.
func DefaultConfig() Config {
	return Config{
		ExecuteDelay: 800 * time.Millisecond,
		ProofTimeout: 10 * time.Second,
	}
}

// Service is the append-only action timeline for the current run.
//
// Lifecycle: records are created pending, move to executing after a fixed
// delay, then to completed (with a verification artifact attached) or failed.
// All transitions are guarded by the run identifier, so callbacks from a
// superseded run are discarded.
type Service struct {
	mu      sync.RWMutex
	records []domain.ActionRecord
	byID    map[string]int
	runID   string

	cfg      Config
	proofs   domain.ProofService
	eventBus *events.Bus
	sink     domain.LogSink
	log      zerolog.Logger
}

// NewService creates a new timeline service
func NewService(cfg Config, proofs domain.ProofService, eventBus *events.Bus, sink domain.LogSink, log zerolog.Logger) *Service {
	if cfg.ExecuteDelay <= 0 {
		cfg.ExecuteDelay = DefaultConfig().ExecuteDelay
	}
	if cfg.ProofTimeout <= 0 {
		cfg.ProofTimeout = DefaultConfig().ProofTimeout
	}
	return &Service{
		byID:     make(map[string]int),
		cfg:      cfg,
		proofs:   proofs,
		eventBus: eventBus,
		sink:     sink,
		log:      log.With().Str("service", "timeline").Logger(),
	}
}

// Reset clears all records and adopts a new run identifier. In-flight
// lifecycle callbacks from the previous run become no-ops.
func (s *Service) Reset(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.byID = make(map[string]int)
	s.runID = runID
}

// Record appends a pending action record and schedules its lifecycle.
func (s *Service) Record(runID string, tick int, agentLabel, actionKind, description string, impact *domain.ImpactDelta) domain.ActionRecord {
	now := time.Now().UTC()
	record := domain.ActionRecord{
		ID:          uuid.NewString(),
		RunID:       runID,
		Tick:        tick,
		AgentLabel:  agentLabel,
		ActionKind:  actionKind,
		Description: description,
		Status:      domain.ActionPending,
		Impact:      impact,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	if runID != s.runID {
		// A new run superseded the caller; drop the record.
		s.mu.Unlock()
		return record
	}
	s.byID[record.ID] = len(s.records)
	s.records = append(s.records, record)
	s.mu.Unlock()

	s.emit(events.ActionRecorded, record)
	if s.sink != nil {
		s.sink.Append(domain.LogInfo, agentLabel+": "+description)
	}

	// Lifecycle runs off the tick path; external work never blocks the clock.
	go s.advanceLifecycle(record.ID, runID, description)

	return record
}

// advanceLifecycle moves one record pending -> executing -> completed/failed.
func (s *Service) advanceLifecycle(actionID, runID, statement string) {
	time.Sleep(s.cfg.ExecuteDelay)
	if !s.transition(actionID, runID, domain.ActionExecuting, nil) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProofTimeout)
	defer cancel()

	artifact, err := s.proofs.RequestArtifact(ctx, statement)
	if err != nil {
		s.log.Warn().Err(err).Str("action_id", actionID).Msg("Artifact synthesis failed, marking action failed")
		if s.sink != nil {
			s.sink.Append(domain.LogWarning, "verification unavailable for action, marked failed")
		}
		s.transition(actionID, runID, domain.ActionFailed, nil)
		return
	}

	if s.transition(actionID, runID, domain.ActionCompleted, artifact) && s.sink != nil {
		s.sink.Append(domain.LogSuccess, "action verified ("+artifact.ProtocolLabel+")")
	}
}

// transition applies a lifecycle move if the record still belongs to the
// current run and is not already terminal.
func (s *Service) transition(actionID, runID string, status domain.ActionStatus, artifact *domain.Artifact) bool {
	s.mu.Lock()
	if runID != s.runID {
		s.mu.Unlock()
		return false
	}
	idx, ok := s.byID[actionID]
	if !ok || s.records[idx].Status.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.records[idx].Status = status
	s.records[idx].UpdatedAt = time.Now().UTC()
	if artifact != nil {
		s.records[idx].Artifact = artifact
	}
	record := s.records[idx]
	s.mu.Unlock()

	s.emit(events.ActionUpdated, record)
	return true
}

// Snapshot returns a copy of the timeline in append order.
func (s *Service) Snapshot() []domain.ActionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ActionRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns a record by id
func (s *Service) Get(actionID string) (domain.ActionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[actionID]
	if !ok {
		return domain.ActionRecord{}, false
	}
	return s.records[idx], true
}

func (s *Service) emit(eventType events.EventType, record domain.ActionRecord) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Emit(eventType, "timeline", map[string]interface{}{
		"run_id":    record.RunID,
		"action_id": record.ID,
		"tick":      record.Tick,
		"agent":     record.AgentLabel,
		"kind":      record.ActionKind,
		"status":    string(record.Status),
	})
}
