package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/ember/internal/metrics"
)

type fakeStore struct {
	evictCalls atomic.Int32
	pings      atomic.Int32
	failing    atomic.Bool
	lastIdle   atomic.Int64
}

func (f *fakeStore) EvictIdle(maxIdle time.Duration) int {
	f.evictCalls.Add(1)
	f.lastIdle.Store(int64(maxIdle))
	return 2
}

func (f *fakeStore) Cached() int { return 3 }

func (f *fakeStore) Ping(context.Context) error {
	f.pings.Add(1)
	if f.failing.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestStart_RunsTasksUntilCancelled(t *testing.T) {
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan struct{})
	go func() {
		Start(ctx, store, metrics.New(), Config{
			EvictInterval: 5 * time.Millisecond,
			IdleAfter:     time.Minute,
			ProbeInterval: 5 * time.Millisecond,
		}, discard())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return store.evictCalls.Load() >= 2 && store.pings.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(time.Minute), store.lastIdle.Load())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStart_DisabledTasks(t *testing.T) {
	store := &fakeStore{}
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
	defer cancel()

	Start(ctx, store, nil, Config{}, discard())
	assert.Zero(t, store.evictCalls.Load())
	assert.Zero(t, store.pings.Load())
}

func TestProber_TracksTransitions(t *testing.T) {
	store := &fakeStore{}
	p := &prober{store: store, rec: metrics.New(), logger: discard()}

	p.run(t.Context())
	assert.False(t, p.down.Load())

	store.failing.Store(true)
	p.run(t.Context())
	assert.True(t, p.down.Load())

	store.failing.Store(false)
	p.run(t.Context())
	assert.False(t, p.down.Load())
	assert.EqualValues(t, 3, store.pings.Load())
}
