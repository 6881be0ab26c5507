// Package events provides the in-process pub/sub bus that connects the
// simulation engine to the streaming and presentation layers.
package events

import (
	"sync"
	"time"
)

// EventType identifies a category of event
type EventType string

const (
	RunStarted        EventType = "run_started"
	RunPaused         EventType = "run_paused"
	RunResumed        EventType = "run_resumed"
	RunReset          EventType = "run_reset"
	RunCompleted      EventType = "run_completed"
	TickAdvanced      EventType = "tick_advanced"
	HedgeActivated    EventType = "hedge_activated"
	HedgeRatioReduced EventType = "hedge_ratio_reduced"
	ActionRecorded    EventType = "action_recorded"
	ActionUpdated     EventType = "action_updated"
	LogAppended       EventType = "log_appended"
	SummaryReady      EventType = "summary_ready"
)

// AllEventTypes lists every event type the bus can carry, in stream order.
var AllEventTypes = []EventType{
	RunStarted,
	RunPaused,
	RunResumed,
	RunReset,
	RunCompleted,
	TickAdvanced,
	HedgeActivated,
	HedgeRatioReduced,
	ActionRecorded,
	ActionUpdated,
	LogAppended,
	SummaryReady,
}

// Event is a single published event
type Event struct {
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// Handler processes a published event. Handlers must not block; slow
// consumers should buffer on their own channel.
type Handler func(event *Event)

// Bus is a synchronous fan-out pub/sub bus. Publishing never blocks on
// subscriber work beyond the handler call itself; stream handlers use
// buffered channels with drop-on-full semantics.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for an event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit publishes an event to all handlers subscribed to its type
func (b *Bus) Emit(eventType EventType, source string, payload map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Source:    source,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[eventType]))
	copy(handlers, b.handlers[eventType])
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
