package audit

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SQLSink writes events to the audit_logs table from a background
// goroutine. Record never blocks: events are dropped when the queue is
// full, and insert failures are logged and swallowed. A dropped or failed
// audit row must never fail or roll back the financial operation that
// produced it.
type SQLSink struct {
	db     *sql.DB
	events chan Event
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

const sinkQueueSize = 256

func NewSQLSink(db *sql.DB) *SQLSink {
	s := &SQLSink{
		db:     db,
		events: make(chan Event, sinkQueueSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *SQLSink) Record(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	// The send must happen under the lock: once Close has closed the
	// channel, a send would panic.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		log.Printf("audit: sink closed, dropping event %q", e.Action)
		return
	}
	select {
	case s.events <- e:
	default:
		log.Printf("audit: queue full, dropping event %q", e.Action)
	}
}

func (s *SQLSink) run() {
	defer close(s.done)
	for e := range s.events {
		s.insert(e)
	}
}

func (s *SQLSink) insert(e Event) {
	_, err := s.db.Exec(
		`INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, details, source_addr, created_at)
		 VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)`,
		uuid.NewString(), e.UserID, e.Action, e.EntityType, e.EntityID, e.Details, e.SourceAddr, e.At)
	if err != nil {
		log.Printf("audit: could not record event %q: %v", e.Action, err)
	}
}

// Close drains the queue and stops the writer. Safe to call more than
// once; events recorded after Close are dropped.
func (s *SQLSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()
	<-s.done
}
