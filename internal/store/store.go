// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/evening-ritual/internal/domain"
)

// Supported backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// ErrStoreBusy is returned when the backend is temporarily locked by another writer.
var ErrStoreBusy = errors.New("store busy")

// Repository defines the interface for persisting evening aggregates.
// Implementations never interpret state; they only load and store it.
type Repository interface {
	// GetOrCreate returns the aggregate for (sessionID, userID), creating a
	// default IDLE aggregate on first access. Repeated calls never duplicate it.
	GetOrCreate(ctx context.Context, sessionID, userID string) (*domain.Aggregate, error)

	// Save persists the aggregate, replacing whatever was stored for its key.
	Save(ctx context.Context, agg *domain.Aggregate) error

	// Clear removes every stored aggregate. Only used for resets and tests.
	Clear(ctx context.Context) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Open returns the repository for the named backend.
func Open(backend, dbPath string) (Repository, error) {
	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendSQLite:
		return NewSQLite(dbPath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
