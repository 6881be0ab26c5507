// Package logstream provides the append-only narrative log stream consumed by
// the presentation layer.
package logstream

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixtrade/replay/internal/domain"
	"github.com/helixtrade/replay/internal/events"
)

// Stream is an ordered, append-only sink of narrative log lines for the
// current run. Cleared when a new run starts.
type Stream struct {
	mu       sync.RWMutex
	entries  []domain.LogEntry
	eventBus *events.Bus
	log      zerolog.Logger
}

// New creates a new log stream
func New(eventBus *events.Bus, log zerolog.Logger) *Stream {
	return &Stream{
		entries:  make([]domain.LogEntry, 0, 128),
		eventBus: eventBus,
		log:      log.With().Str("component", "logstream").Logger(),
	}
}

// Append adds a log line and publishes it on the event bus.
func (s *Stream) Append(severity domain.LogSeverity, message string) {
	entry := domain.LogEntry{
		Timestamp: time.Now().UTC(),
		Severity:  severity,
		Message:   message,
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	s.log.Debug().Str("severity", string(severity)).Msg(message)

	if s.eventBus != nil {
		s.eventBus.Emit(events.LogAppended, "logstream", map[string]interface{}{
			"severity":  string(severity),
			"message":   message,
			"timestamp": entry.Timestamp,
		})
	}
}

// Snapshot returns a copy of all entries in append order.
func (s *Stream) Snapshot() []domain.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Clear discards all entries. Called when a run starts or resets.
func (s *Stream) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
}

// Len returns the number of entries
func (s *Stream) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
