package listener

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingCache struct {
	calls []StateChange
}

func (c *recordingCache) Invalidate(identity string, committedAt time.Time) bool {
	c.calls = append(c.calls, StateChange{Identity: identity, UpdatedAt: committedAt})
	return true
}

func TestHandlePayload(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := &recordingCache{}

	handlePayload(`{"identity":"+15550001","updated_at":"2026-03-02T08:00:00.123456789Z"}`, cache, logger)
	handlePayload(`not json`, cache, logger)
	handlePayload(`{"identity":"","updated_at":"2026-03-02T08:00:00Z"}`, cache, logger)

	if assert.Len(t, cache.calls, 1) {
		assert.Equal(t, "+15550001", cache.calls[0].Identity)
		assert.True(t, cache.calls[0].UpdatedAt.Equal(time.Date(2026, 3, 2, 8, 0, 0, 123456789, time.UTC)))
	}
}
