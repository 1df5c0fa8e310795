package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// commitTimeout bounds the durable write once a mutation has been decided.
// The write is detached from request cancellation: a message that already
// went out must still consume its cooldown if the caller hangs up.
const commitTimeout = 10 * time.Second

// Backend is durable key-addressable storage for user records. Put must be
// atomic: a concurrent Get sees either the old or the new record, never a
// partial one.
type Backend interface {
	Get(ctx context.Context, identity string) (*UserState, error)
	Put(ctx context.Context, s *UserState) error
	Ping(ctx context.Context) error
	Close() error
}

type cached struct {
	state   *UserState
	touched time.Time
}

// Repository is the in-memory view over a Backend. The cache only ever holds
// records that the backend has confirmed.
type Repository struct {
	backend Backend
	locks   *keyLock
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]cached
}

// NewRepository wraps backend with per-identity serialization and a
// write-through cache.
func NewRepository(backend Backend) *Repository {
	return &Repository{
		backend: backend,
		locks:   newKeyLock(),
		now:     time.Now,
		cache:   make(map[string]cached),
	}
}

// Load returns a copy of the identity's record, or a fresh default when none
// exists. It never creates a record.
func (r *Repository) Load(ctx context.Context, identity string) (*UserState, error) {
	r.mu.RLock()
	c, ok := r.cache[identity]
	r.mu.RUnlock()
	if ok {
		return c.state.Clone(), nil
	}

	s, err := r.backend.Get(ctx, identity)
	switch {
	case errors.Is(err, ErrNotFound):
		return New(identity), nil
	case err != nil:
		return nil, &PersistenceError{Identity: identity, Op: "load", Err: err}
	}
	return s, nil
}

// Mutate applies fn to a copy of the identity's record and commits the result.
// Calls for the same identity are strictly serialized; fn may block (for
// example on an outbound send) without affecting other identities. If fn
// returns an error nothing is written; ErrNoCommit is swallowed and the
// unchanged record is returned.
func (r *Repository) Mutate(ctx context.Context, identity string, fn func(*UserState) error) (*UserState, error) {
	unlock := r.locks.Lock(identity)
	defer unlock()

	cur, err := r.current(ctx, identity)
	if err != nil {
		return nil, err
	}

	next := cur.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, ErrNoCommit) {
			return cur.Clone(), nil
		}
		return nil, err
	}
	next.Identity = identity
	next.UpdatedAt = r.now().UTC()

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	if err := r.backend.Put(commitCtx, next); err != nil {
		return nil, &PersistenceError{Identity: identity, Op: "commit", Err: err}
	}

	r.remember(next)
	return next.Clone(), nil
}

// current returns the committed record. Callers must hold the identity lock.
func (r *Repository) current(ctx context.Context, identity string) (*UserState, error) {
	r.mu.RLock()
	c, ok := r.cache[identity]
	r.mu.RUnlock()
	if ok {
		return c.state, nil
	}

	s, err := r.backend.Get(ctx, identity)
	switch {
	case errors.Is(err, ErrNotFound):
		return New(identity), nil
	case err != nil:
		return nil, &PersistenceError{Identity: identity, Op: "load", Err: err}
	}
	r.remember(s)
	return s, nil
}

func (r *Repository) remember(s *UserState) {
	r.mu.Lock()
	r.cache[s.Identity] = cached{state: s, touched: r.now()}
	r.mu.Unlock()
}

// EvictIdle drops cached records untouched for longer than maxIdle and
// returns how many were dropped. Durable records are unaffected.
func (r *Repository) EvictIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, c := range r.cache {
		if c.touched.Before(cutoff) {
			delete(r.cache, id)
			n++
		}
	}
	return n
}

// Invalidate drops the cached copy of identity when it is older than a
// commit made elsewhere (another process sharing the backend). It reports
// whether an entry was dropped.
func (r *Repository) Invalidate(identity string, committedAt time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cache[identity]
	if !ok || !c.state.UpdatedAt.Before(committedAt) {
		return false
	}
	delete(r.cache, identity)
	return true
}

// Cached returns the number of records held in memory.
func (r *Repository) Cached() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Stats reports cache and lock occupancy.
func (r *Repository) Stats() map[string]interface{} {
	return map[string]interface{}{
		"cached_records":     r.Cached(),
		"in_flight_mutators": r.locks.inFlight(),
	}
}

// Ping checks the backend is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.backend.Ping(ctx); err != nil {
		return fmt.Errorf("ping state backend: %w", err)
	}
	return nil
}

// Close closes the backend.
func (r *Repository) Close() error {
	return r.backend.Close()
}
