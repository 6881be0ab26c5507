package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitDeliversToSubscribers(t *testing.T) {
	bus := NewBus()

	var received []*Event
	bus.Subscribe(TickAdvanced, func(event *Event) {
		received = append(received, event)
	})

	bus.Emit(TickAdvanced, "engine", map[string]interface{}{"tick": 3})
	bus.Emit(RunStarted, "engine", nil) // different type, not delivered

	require.Len(t, received, 1)
	assert.Equal(t, TickAdvanced, received[0].Type)
	assert.Equal(t, "engine", received[0].Source)
	assert.Equal(t, 3, received[0].Payload["tick"])
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestEmitFansOutToAllHandlers(t *testing.T) {
	bus := NewBus()

	count := 0
	for i := 0; i < 3; i++ {
		bus.Subscribe(RunCompleted, func(event *Event) { count++ })
	}

	bus.Emit(RunCompleted, "engine", nil)
	assert.Equal(t, 3, count)
}

func TestEmitWithNoSubscribersIsNoOp(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() {
		bus.Emit(HedgeActivated, "engine", map[string]interface{}{"tick": 1})
	})
}
