package state

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Backend when no record exists for an identity.
var ErrNotFound = errors.New("state not found")

// ErrNoCommit may be returned from a Mutate callback to abandon the mutation
// without reporting an error. Nothing is written.
var ErrNoCommit = errors.New("no commit")

// PersistenceError means the durable store could not be read or written. The
// mutation did not take effect and callers must not assume otherwise.
type PersistenceError struct {
	Identity string
	Op       string // "load" | "commit"
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s state for %q: %v", e.Op, e.Identity, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
