// Package db provides a pgxpool-based connection pool with schema bootstrap,
// prepared statement registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/ember/internal/config"
)

// StateChannel is the NOTIFY channel a committed state write is announced on.
const StateChannel = "ember_state_changed"

// Schema is the Postgres DDL for the state store. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS user_state (
	identity   TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Schema must exist before statements referencing it can be prepared.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, Schema); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		"health_check": "SELECT 1",

		"state_get": "SELECT record FROM user_state WHERE identity = $1",
		// The notification is delivered on commit; other replicas use it to
		// drop their cached copy (see internal/listener).
		"state_put": `WITH up AS (
				INSERT INTO user_state (identity, record, updated_at)
				VALUES ($1, $2, NOW())
				ON CONFLICT (identity) DO UPDATE SET record = EXCLUDED.record, updated_at = NOW()
				RETURNING identity, record->>'updated_at' AS committed_at
			)
			SELECT pg_notify('` + StateChannel + `',
				json_build_object('identity', identity, 'updated_at', committed_at)::text)
			FROM up`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
