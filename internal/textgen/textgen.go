// Package textgen turns an anomaly or an inbound reply into a short message.
//
// Two generators are provided: Template, which is deterministic and is also
// the fallback whenever a remote generator fails, and OpenAI, which talks to
// any OpenAI-compatible chat completion endpoint.
package textgen

import (
	"context"
	"fmt"
	"math"

	"github.com/albapepper/ember/internal/anomaly"
)

// Generator produces check-in and acknowledgment texts. Implementations must
// honour ctx cancellation; callers bound every call with a timeout.
type Generator interface {
	CheckIn(ctx context.Context, a *anomaly.Anomaly) (string, error)
	Acknowledge(ctx context.Context, inbound string) (string, error)
}

// Template renders fixed wording from the anomaly context.
type Template struct{}

// CheckIn renders DefaultCheckIn. It never fails.
func (Template) CheckIn(_ context.Context, a *anomaly.Anomaly) (string, error) {
	return DefaultCheckIn(a), nil
}

// Acknowledge returns DefaultAcknowledgment regardless of the reply.
func (Template) Acknowledge(_ context.Context, _ string) (string, error) {
	return DefaultAcknowledgment, nil
}

// DefaultAcknowledgment closes a thread when nothing better is available.
const DefaultAcknowledgment = "Thanks for letting me know. Take care of yourself today."

// DefaultCheckIn is the deterministic check-in text for an anomaly.
func DefaultCheckIn(a *anomaly.Anomaly) string {
	if a == nil {
		return "Just checking in. How are you doing today?"
	}
	c := a.Context
	switch a.Type {
	case anomaly.LateWake:
		return fmt.Sprintf("Morning! You're up about %d minutes later than usual. Everything okay?",
			int(c["minutes_late"]))
	case anomaly.ShortSleep:
		return fmt.Sprintf("Only %.1f hours of sleep last night, about %.1f less than usual. How are you feeling?",
			c["actual_hours"], c["hours_short"])
	case anomaly.SkippedRun:
		return fmt.Sprintf("No run yet today, and you usually head out around %s. Taking a rest day?",
			clock(c["typical_hour"]))
	case anomaly.ElevatedRestingHR:
		return fmt.Sprintf("Your resting heart rate is %d bpm, up from your usual %d. Feeling alright?",
			int(c["actual_bpm"]), int(c["usual_bpm"]))
	case anomaly.ShortWorkout:
		return fmt.Sprintf("Shorter run today: %d minutes against your usual %d. All good?",
			int(c["actual_minutes"]), int(c["usual_minutes"]))
	default:
		return "Something looks a little different today. How are you doing?"
	}
}

func clock(hour float64) string {
	h := int(math.Round(hour)) % 24
	switch {
	case h == 0:
		return "12am"
	case h < 12:
		return fmt.Sprintf("%dam", h)
	case h == 12:
		return "12pm"
	default:
		return fmt.Sprintf("%dpm", h-12)
	}
}
