package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/evening-ritual/internal/domain"
	"github.com/ashureev/evening-ritual/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite creates a new SQLite-backed repository and applies pending migrations.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers; busy timeout so short write contention waits instead of failing.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetOrCreate retrieves the aggregate for (sessionID, userID), inserting a default row first if needed.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, sessionID, userID string) (*domain.Aggregate, error) {
	def := domain.NewAggregate(sessionID, userID, s.now())

	insert := `
	INSERT INTO evenings (
		session_id, user_id, state,
		rest_extended_once, plan_locked, rest_active,
		scroll_block_active, updated_at
	) VALUES (?, ?, ?, 0, 0, 0, 0, ?)
	ON CONFLICT(session_id, user_id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, insert,
		def.SessionID, def.UserID, string(def.State), def.UpdatedAt.UnixNano(),
	); err != nil {
		return nil, wrapErr("insert default evening", err)
	}

	query := `
		SELECT session_id, user_id, state,
		       rest_extended_once, plan_locked, rest_active,
		       scroll_block_active, updated_at
		FROM evenings WHERE session_id = ? AND user_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID, userID)

	var agg domain.Aggregate
	var state string
	var updatedAt int64
	err := row.Scan(
		&agg.SessionID, &agg.UserID, &state,
		&agg.Context.RestExtendedOnce, &agg.Context.PlanLocked, &agg.Context.RestActive,
		&agg.ScrollBlockActive, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("evening %s/%s missing after insert", sessionID, userID)
	}
	if err != nil {
		return nil, wrapErr("scan evening row", err)
	}

	agg.State = domain.State(state)
	agg.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &agg, nil
}

// Save upserts the aggregate row.
func (s *SQLiteStore) Save(ctx context.Context, agg *domain.Aggregate) error {
	query := `
	INSERT INTO evenings (
		session_id, user_id, state,
		rest_extended_once, plan_locked, rest_active,
		scroll_block_active, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id, user_id) DO UPDATE SET
		state = excluded.state,
		rest_extended_once = excluded.rest_extended_once,
		plan_locked = excluded.plan_locked,
		rest_active = excluded.rest_active,
		scroll_block_active = excluded.scroll_block_active,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		agg.SessionID, agg.UserID, string(agg.State),
		agg.Context.RestExtendedOnce, agg.Context.PlanLocked, agg.Context.RestActive,
		agg.ScrollBlockActive, agg.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return wrapErr("upsert evening", err)
	}
	return nil
}

// Clear deletes every evening row.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM evenings`); err != nil {
		return wrapErr("clear evenings", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// wrapErr tags lock contention with ErrStoreBusy so callers can tell it apart from hard failures.
func wrapErr(op string, err error) error {
	if shared.IsSQLiteConflictError(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreBusy, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
