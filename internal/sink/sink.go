// Package sink records emitted events and queued jobs.
//
// Both recorders are append-only and safe for concurrent use. They only record
// intent; delivery and execution belong to whoever drains them.
package sink

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/evening-ritual/internal/domain"
)

// Entry is a stored record together with its bookkeeping.
type Entry[R any] struct {
	ID         string
	RecordedAt time.Time
	Record     R
}

type recordLog[R any] struct {
	mu      sync.Mutex
	entries []Entry[R]
	now     func() time.Time
}

func (l *recordLog[R]) append(r R) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry[R]{
		ID:         uuid.NewString(),
		RecordedAt: l.now(),
		Record:     r,
	})
}

func (l *recordLog[R]) snapshot() []Entry[R] {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry[R], len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *recordLog[R]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *recordLog[R]) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// EventWriter collects emitted events.
type EventWriter struct {
	log recordLog[domain.EventRecord]
}

// NewEventWriter creates an empty event writer.
func NewEventWriter() *EventWriter {
	return &EventWriter{log: recordLog[domain.EventRecord]{now: time.Now}}
}

// Emit appends an event and returns the stored record.
func (w *EventWriter) Emit(eventType domain.EventType, payload domain.Payload) domain.EventRecord {
	rec := domain.EventRecord{Type: eventType, Payload: clonePayload(payload)}
	w.log.append(rec)
	return rec
}

// Entries returns a copy of everything emitted so far, oldest first.
func (w *EventWriter) Entries() []Entry[domain.EventRecord] {
	return w.log.snapshot()
}

// Len returns the number of emitted events.
func (w *EventWriter) Len() int {
	return w.log.len()
}

// Clear drops all recorded events. Used to reset test fixtures.
func (w *EventWriter) Clear() {
	w.log.clear()
}

// JobQueue collects queued jobs.
type JobQueue struct {
	log recordLog[domain.JobRecord]
}

// NewJobQueue creates an empty job queue.
func NewJobQueue() *JobQueue {
	return &JobQueue{log: recordLog[domain.JobRecord]{now: time.Now}}
}

// Enqueue appends a job and returns the stored record.
func (q *JobQueue) Enqueue(jobType domain.JobType, payload domain.Payload) domain.JobRecord {
	rec := domain.JobRecord{Type: jobType, Payload: clonePayload(payload)}
	q.log.append(rec)
	return rec
}

// Entries returns a copy of everything queued so far, oldest first.
func (q *JobQueue) Entries() []Entry[domain.JobRecord] {
	return q.log.snapshot()
}

// Len returns the number of queued jobs.
func (q *JobQueue) Len() int {
	return q.log.len()
}

// Clear drops all queued jobs. Used to reset test fixtures.
func (q *JobQueue) Clear() {
	q.log.clear()
}

// clonePayload never returns nil so records always serialize an object.
func clonePayload(p domain.Payload) domain.Payload {
	if p == nil {
		return domain.Payload{}
	}
	return maps.Clone(p)
}
