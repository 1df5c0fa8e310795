package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// SQLiteBackend stores one JSON document per identity in a local SQLite file.
// Each Put is a single UPSERT statement, so readers never observe a partial
// record.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	// modernc.org/sqlite takes pragmas as _pragma= query parameters.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		_ = db.Close() // best effort
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate() error {
	_, err := b.db.Exec(`
	CREATE TABLE IF NOT EXISTS user_state (
		identity   TEXT PRIMARY KEY,
		record     TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`)
	return err
}

// Get returns the stored record, or ErrNotFound.
func (b *SQLiteBackend) Get(ctx context.Context, identity string) (*UserState, error) {
	var raw []byte
	err := b.db.QueryRowContext(ctx,
		"SELECT record FROM user_state WHERE identity = ?", identity,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user_state: %w", err)
	}
	return decodeRecord(raw)
}

// Put upserts the whole record in one statement.
func (b *SQLiteBackend) Put(ctx context.Context, s *UserState) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal user_state: %w", err)
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO user_state (identity, record, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			record = excluded.record,
			updated_at = excluded.updated_at`,
		s.Identity, string(raw), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user_state: %w", err)
	}
	return nil
}

// Ping checks the database file is reachable.
func (b *SQLiteBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func decodeRecord(raw []byte) (*UserState, error) {
	var s UserState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode user_state: %w", err)
	}
	if s.Window == nil {
		s.Window = New(s.Identity).Window
	}
	if s.Conversation == nil {
		s.Conversation = []Turn{}
	}
	return &s, nil
}
