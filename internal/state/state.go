// Package state owns the single mutable record kept per user identity and
// the repository that serializes every read-modify-write of it.
//
// Records are never deleted. Writes for one identity are strictly ordered;
// writes for different identities never wait on each other.
package state

import (
	"time"

	"github.com/albapepper/ember/internal/baseline"
)

// Role is the author of a conversation turn.
type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Turn is one message in the day's conversation thread.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// UserState is the durable per-identity record.
type UserState struct {
	Identity        string          `json:"identity"`
	Window          baseline.Window `json:"window"`
	LastMessageDate time.Time       `json:"last_message_date,omitzero"`
	ThreadOpen      bool            `json:"thread_open"`
	ThreadAnomaly   string          `json:"thread_anomaly,omitempty"`
	Conversation    []Turn          `json:"conversation"`
	SnapshotsSeen   int             `json:"snapshots_seen"`
	UpdatedAt       time.Time       `json:"updated_at,omitzero"`
}

// New returns the default record for an identity never seen before: empty
// window, no thread.
func New(identity string) *UserState {
	return &UserState{
		Identity:     identity,
		Window:       baseline.Window{},
		Conversation: []Turn{},
	}
}

// Clone returns a copy that shares no slices with s. Snapshot metric
// pointers are shared; snapshots are immutable once appended.
func (s *UserState) Clone() *UserState {
	c := *s
	c.Window = append(baseline.Window{}, s.Window...)
	c.Conversation = append([]Turn{}, s.Conversation...)
	return &c
}
