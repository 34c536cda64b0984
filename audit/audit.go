// Package audit records human-readable system events on a best-effort
// basis. Recording is a one-way send: a sink can never fail its caller and
// never participates in the caller's store transaction.
package audit

import (
	"sync"
	"time"
)

// Event is one auditable action.
type Event struct {
	UserID     string    `json:"user_id,omitempty"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	SourceAddr string    `json:"source_addr,omitempty"`
	At         time.Time `json:"at"`
}

// Sink accepts events. Implementations own their retry/drop policy and
// must never block the caller for long or propagate failures.
type Sink interface {
	Record(e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(Event) {}

// Memory keeps events in order. Test double.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Record(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
