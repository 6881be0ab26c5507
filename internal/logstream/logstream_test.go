package logstream

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixtrade/replay/internal/domain"
	"github.com/helixtrade/replay/internal/events"
)

func TestAppendPreservesOrder(t *testing.T) {
	s := New(events.NewBus(), zerolog.Nop())

	s.Append(domain.LogInfo, "first")
	s.Append(domain.LogWarning, "second")
	s.Append(domain.LogSuccess, "third")

	entries := s.Snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Message)
	assert.Equal(t, "third", entries[2].Message)
	assert.Equal(t, domain.LogWarning, entries[1].Severity)
}

func TestAppendPublishesEvent(t *testing.T) {
	bus := events.NewBus()
	var published []*events.Event
	bus.Subscribe(events.LogAppended, func(event *events.Event) {
		published = append(published, event)
	})

	s := New(bus, zerolog.Nop())
	s.Append(domain.LogError, "boom")

	require.Len(t, published, 1)
	assert.Equal(t, "boom", published[0].Payload["message"])
	assert.Equal(t, "error", published[0].Payload["severity"])
}

func TestClear(t *testing.T) {
	s := New(events.NewBus(), zerolog.Nop())
	s.Append(domain.LogInfo, "entry")
	require.Equal(t, 1, s.Len())

	s.Clear()
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Snapshot())
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New(events.NewBus(), zerolog.Nop())
	s.Append(domain.LogInfo, "entry")

	snap := s.Snapshot()
	snap[0].Message = "mutated"

	assert.Equal(t, "entry", s.Snapshot()[0].Message)
}
