package main

import (
	"context"
	"sync"

	"github.com/albapepper/ember/internal/state"
)

// dryRunBackend reads through to the durable store but keeps writes in
// memory. Replayed snapshots still build on each other within one run, while
// real users' windows, cooldowns and threads stay untouched.
type dryRunBackend struct {
	durable state.Backend

	mu      sync.Mutex
	pending map[string]*state.UserState
}

func newDryRunBackend(durable state.Backend) *dryRunBackend {
	return &dryRunBackend{durable: durable, pending: make(map[string]*state.UserState)}
}

func (b *dryRunBackend) Get(ctx context.Context, identity string) (*state.UserState, error) {
	b.mu.Lock()
	s, ok := b.pending[identity]
	b.mu.Unlock()
	if ok {
		return s.Clone(), nil
	}
	return b.durable.Get(ctx, identity)
}

func (b *dryRunBackend) Put(_ context.Context, s *state.UserState) error {
	b.mu.Lock()
	b.pending[s.Identity] = s.Clone()
	b.mu.Unlock()
	return nil
}

func (b *dryRunBackend) Ping(ctx context.Context) error { return b.durable.Ping(ctx) }

func (b *dryRunBackend) Close() error { return b.durable.Close() }
