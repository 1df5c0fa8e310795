package state

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/ember/internal/config"
	"github.com/albapepper/ember/internal/db"
)

func TestPostgresBackend_RoundTrip(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := t.Context()
	pool, err := db.New(ctx, &config.Config{DatabaseURL: url, DBPoolMinConns: 1, DBPoolMaxConns: 4})
	require.NoError(t, err)
	defer pool.Close()

	backend := NewPostgresBackend(pool)
	require.NoError(t, backend.Ping(ctx))

	id := "test-" + t.Name()
	_, _ = pool.Exec(ctx, "DELETE FROM user_state WHERE identity = $1", id)

	_, err = backend.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	s := New(id)
	s.SnapshotsSeen = 3
	require.NoError(t, backend.Put(ctx, s))

	got, err := backend.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, got.SnapshotsSeen)
	assert.NotNil(t, got.Conversation)
}
