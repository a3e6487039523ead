package store

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/evening-ritual/internal/domain"
)

type aggregateKey struct {
	sessionID string
	userID    string
}

// MemoryStore implements Repository in process memory. Contents are lost on exit.
type MemoryStore struct {
	mu   sync.RWMutex
	aggs map[aggregateKey]*domain.Aggregate
	now  func() time.Time
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		aggs: make(map[aggregateKey]*domain.Aggregate),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreate returns a copy of the stored aggregate, creating it if absent.
func (s *MemoryStore) GetOrCreate(_ context.Context, sessionID, userID string) (*domain.Aggregate, error) {
	key := aggregateKey{sessionID: sessionID, userID: userID}

	s.mu.RLock()
	agg, ok := s.aggs[key]
	s.mu.RUnlock()
	if ok {
		return agg.Clone(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have created it between the two locks.
	if agg, ok := s.aggs[key]; ok {
		return agg.Clone(), nil
	}
	agg = domain.NewAggregate(sessionID, userID, s.now())
	s.aggs[key] = agg
	return agg.Clone(), nil
}

// Save stores a copy of the aggregate.
func (s *MemoryStore) Save(_ context.Context, agg *domain.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggs[aggregateKey{sessionID: agg.SessionID, userID: agg.UserID}] = agg.Clone()
	return nil
}

// Clear removes every aggregate.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.aggs)
	return nil
}

// Len returns the number of stored aggregates.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.aggs)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
