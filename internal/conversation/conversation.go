// Package conversation implements the daily cooldown and the one-message,
// one-reply thread lifecycle on top of a user's state record.
//
// There is no explicit day-rollover transition. Every check compares the
// thread's date with now on the calendar of now's location, so a new day
// simply stops matching yesterday's thread.
package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/albapepper/ember/internal/state"
)

// Phase is the thread state for a given day.
type Phase string

const (
	Idle   Phase = "idle"   // no message sent today
	Open   Phase = "open"   // message sent, awaiting a reply
	Closed Phase = "closed" // reply acknowledged
)

// PhaseOf reports the thread phase of s as seen at now.
func PhaseOf(s *state.UserState, now time.Time) Phase {
	if !sentToday(s, now) {
		return Idle
	}
	if s.ThreadOpen {
		return Open
	}
	return Closed
}

// CanOpen reports whether the cooldown allows a proactive message at now.
func CanOpen(s *state.UserState, now time.Time) bool {
	return !sentToday(s, now)
}

// OpenThread starts today's thread with a single assistant turn, replacing
// any earlier conversation. It returns false and leaves s untouched when a
// message was already sent today.
func OpenThread(s *state.UserState, anomalyType, text string, now time.Time) bool {
	if !CanOpen(s, now) {
		return false
	}
	s.ThreadOpen = true
	s.ThreadAnomaly = anomalyType
	s.LastMessageDate = now
	s.Conversation = []state.Turn{newTurn(state.RoleAssistant, text, now)}
	return true
}

// AcceptReply appends the user's reply when today's thread is open and still
// waiting on the user. Otherwise it returns false without touching s; a
// closed or stale thread is never reopened.
func AcceptReply(s *state.UserState, text string, now time.Time) bool {
	if !awaiting(s, now, state.RoleAssistant) {
		return false
	}
	s.Conversation = append(s.Conversation, newTurn(state.RoleUser, text, now))
	return true
}

// Acknowledge appends the closing assistant turn after an accepted reply and
// closes the thread.
func Acknowledge(s *state.UserState, text string, now time.Time) bool {
	if !awaiting(s, now, state.RoleUser) {
		return false
	}
	s.Conversation = append(s.Conversation, newTurn(state.RoleAssistant, text, now))
	CloseThread(s)
	return true
}

// CloseThread marks the thread closed.
func CloseThread(s *state.UserState) {
	s.ThreadOpen = false
}

// awaiting reports whether today's thread is open and its last turn was
// written by last.
func awaiting(s *state.UserState, now time.Time, last state.Role) bool {
	if !s.ThreadOpen || !sentToday(s, now) || len(s.Conversation) == 0 {
		return false
	}
	return s.Conversation[len(s.Conversation)-1].Role == last
}

func sentToday(s *state.UserState, now time.Time) bool {
	if s.LastMessageDate.IsZero() {
		return false
	}
	return SameDay(s.LastMessageDate, now)
}

// SameDay reports whether a and b fall on the same calendar date in b's
// location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func newTurn(role state.Role, content string, at time.Time) state.Turn {
	return state.Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: at.UTC(),
	}
}
