package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/ember/internal/db"
)

// PostgresBackend stores records as JSONB rows. It relies on the prepared
// statements registered by internal/db.
type PostgresBackend struct {
	pool *db.Pool
}

// NewPostgresBackend wraps an existing pool. The pool is owned by the caller
// and is not closed by Close.
func NewPostgresBackend(pool *db.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

// Get returns the stored record, or ErrNotFound.
func (b *PostgresBackend) Get(ctx context.Context, identity string) (*UserState, error) {
	var raw []byte
	err := b.pool.QueryRow(ctx, "state_get", identity).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user_state: %w", err)
	}
	return decodeRecord(raw)
}

// Put upserts the record and announces the commit on db.StateChannel.
func (b *PostgresBackend) Put(ctx context.Context, s *UserState) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal user_state: %w", err)
	}
	if _, err := b.pool.Exec(ctx, "state_put", s.Identity, raw); err != nil {
		return fmt.Errorf("upsert user_state: %w", err)
	}
	return nil
}

// Ping runs the pool health check.
func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.pool.HealthCheck(ctx)
}

// Close is a no-op; the pool belongs to the caller.
func (b *PostgresBackend) Close() error { return nil }
