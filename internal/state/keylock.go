package state

import "sync"

// keyLock hands out one mutex per key. Entries are reference counted and
// removed once nobody holds or waits on them, so the map only grows with the
// number of identities currently in flight.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is held and returns the matching unlock func.
func (k *keyLock) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// inFlight returns the number of keys currently held or awaited.
func (k *keyLock) inFlight() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
