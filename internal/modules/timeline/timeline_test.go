package timeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixtrade/replay/internal/domain"
	"github.com/helixtrade/replay/internal/events"
)

// stubProofService returns a canned artifact or error after an optional delay.
type stubProofService struct {
	mu       sync.Mutex
	err      error
	delay    time.Duration
	requests int
}

func (s *stubProofService) RequestArtifact(ctx context.Context, statement string) (*domain.Artifact, error) {
	s.mu.Lock()
	s.requests++
	err := s.err
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &domain.Artifact{
		ID:            "artifact-1",
		RootHash:      "abc123",
		ProtocolLabel: "plonky2",
		SecurityLevel: 128,
	}, nil
}

func fastConfig() Config {
	return Config{ExecuteDelay: 2 * time.Millisecond, ProofTimeout: 50 * time.Millisecond}
}

func waitForStatus(t *testing.T, svc *Service, actionID string, status domain.ActionStatus) domain.ActionRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if record, ok := svc.Get(actionID); ok && record.Status == status {
			return record
		}
		time.Sleep(time.Millisecond)
	}
	record, _ := svc.Get(actionID)
	t.Fatalf("action %s never reached %s (stuck at %s)", actionID, status, record.Status)
	return domain.ActionRecord{}
}

func TestRecordReachesCompletedWithArtifact(t *testing.T) {
	svc := NewService(fastConfig(), &stubProofService{}, events.NewBus(), nil, zerolog.Nop())
	svc.Reset("run-1")

	record := svc.Record("run-1", 3, "Hedge Agent", "hedge_activation", "activated protective hedge", nil)
	assert.Equal(t, domain.ActionPending, record.Status)

	final := waitForStatus(t, svc, record.ID, domain.ActionCompleted)
	require.NotNil(t, final.Artifact)
	assert.Equal(t, "plonky2", final.Artifact.ProtocolLabel)
	assert.Equal(t, 128, final.Artifact.SecurityLevel)
}

func TestRecordFailsWhenProofServiceFails(t *testing.T) {
	proofs := &stubProofService{err: errors.New("proof service unreachable")}
	svc := NewService(fastConfig(), proofs, events.NewBus(), nil, zerolog.Nop())
	svc.Reset("run-1")

	record := svc.Record("run-1", 5, "Risk Agent", "rebalance", "trimmed exposure", nil)
	final := waitForStatus(t, svc, record.ID, domain.ActionFailed)
	assert.Nil(t, final.Artifact)
}

func TestRecordFailsOnProofTimeout(t *testing.T) {
	proofs := &stubProofService{delay: time.Second}
	svc := NewService(fastConfig(), proofs, events.NewBus(), nil, zerolog.Nop())
	svc.Reset("run-1")

	record := svc.Record("run-1", 5, "Risk Agent", "rebalance", "trimmed exposure", nil)
	waitForStatus(t, svc, record.ID, domain.ActionFailed)
}

func TestResetDiscardsStaleCallbacks(t *testing.T) {
	proofs := &stubProofService{delay: 20 * time.Millisecond}
	svc := NewService(fastConfig(), proofs, events.NewBus(), nil, zerolog.Nop())
	svc.Reset("run-1")

	record := svc.Record("run-1", 1, "Hedge Agent", "hedge_activation", "activated hedge", nil)

	// Supersede the run before the lifecycle completes.
	svc.Reset("run-2")

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, svc.Snapshot())
	_, ok := svc.Get(record.ID)
	assert.False(t, ok)
}

func TestRecordForStaleRunIsDropped(t *testing.T) {
	svc := NewService(fastConfig(), &stubProofService{}, events.NewBus(), nil, zerolog.Nop())
	svc.Reset("run-2")

	svc.Record("run-1", 1, "Hedge Agent", "hedge_activation", "stale", nil)
	assert.Empty(t, svc.Snapshot())
}

func TestSnapshotPreservesAppendOrder(t *testing.T) {
	svc := NewService(fastConfig(), &stubProofService{}, events.NewBus(), nil, zerolog.Nop())
	svc.Reset("run-1")

	first := svc.Record("run-1", 1, "Market Agent", "observation", "volatility rising", nil)
	second := svc.Record("run-1", 2, "Hedge Agent", "hedge_activation", "activated hedge", nil)

	snapshot := svc.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, first.ID, snapshot[0].ID)
	assert.Equal(t, second.ID, snapshot[1].ID)
}

func TestEveryRecordReachesTerminalState(t *testing.T) {
	svc := NewService(fastConfig(), &stubProofService{}, events.NewBus(), nil, zerolog.Nop())
	svc.Reset("run-1")

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		r := svc.Record("run-1", i, "Agent", "step", "action", nil)
		ids = append(ids, r.ID)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		terminal := 0
		for _, id := range ids {
			if record, ok := svc.Get(id); ok && record.Status.Terminal() {
				terminal++
			}
		}
		if terminal == len(ids) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("not all records reached a terminal state")
}

func TestImpactDeltaCarriedThrough(t *testing.T) {
	svc := NewService(fastConfig(), &stubProofService{}, events.NewBus(), nil, zerolog.Nop())
	svc.Reset("run-1")

	impact := &domain.ImpactDelta{Metric: "risk_score", Before: 62, After: 48}
	record := svc.Record("run-1", 4, "Risk Agent", "de_risk", "reduced exposure", impact)

	stored, ok := svc.Get(record.ID)
	require.True(t, ok)
	require.NotNil(t, stored.Impact)
	assert.Equal(t, "risk_score", stored.Impact.Metric)
	assert.InDelta(t, 62, stored.Impact.Before, 1e-9)
}
