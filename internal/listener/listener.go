// Package listener provides a Postgres LISTEN/NOTIFY consumer that keeps the
// state repository cache coherent when several API processes share one
// Postgres store. It holds a dedicated pgx connection (not from the pool)
// listening on the channel the state_put statement notifies.
//
// Cache coherence is all it provides. Mutations for one identity are only
// linearized within a process, so deployments with several replicas should
// still route each identity to a single replica.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/ember/internal/db"
)

const (
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// StateChange is the JSON payload of a state_put notification.
type StateChange struct {
	Identity  string    `json:"identity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Invalidator drops cached records superseded by a commit elsewhere.
type Invalidator interface {
	Invalidate(identity string, committedAt time.Time) bool
}

// Start opens a dedicated connection and listens on db.StateChannel. It
// reconnects automatically on connection loss. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, cache Invalidator, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, cache, logger)
		if ctx.Err() != nil {
			logger.Info("State change listener stopped (context cancelled)")
			return
		}

		logger.Error("State change listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, cache Invalidator, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+db.StateChannel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", db.StateChannel, err)
	}
	logger.Info("State change listener connected", "channel", db.StateChannel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		handlePayload(notification.Payload, cache, logger)
	}
}

// handlePayload applies one notification. Malformed payloads are logged and
// skipped.
func handlePayload(payload string, cache Invalidator, logger *slog.Logger) {
	var change StateChange
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		logger.Warn("Failed to parse state change", "payload", payload, "error", err)
		return
	}
	if change.Identity == "" {
		return
	}
	if cache.Invalidate(change.Identity, change.UpdatedAt) {
		logger.Debug("Dropped cached state after remote commit",
			"identity", change.Identity, "committed_at", change.UpdatedAt)
	}
}
