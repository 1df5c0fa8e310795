package baseline

import (
	"fmt"
	"math"
	"time"
)

// ValidationError reports a malformed snapshot or request field. It is
// returned before any state is touched and is never worth retrying.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type bound struct {
	field    string
	value    *float64
	lo, hi   float64
	hiStrict bool
}

// Validate checks field ranges. A zero Weekday is accepted and later derived
// from the timestamp by Normalize.
func Validate(s Snapshot) error {
	if s.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "required"}
	}
	if s.Weekday < 0 || s.Weekday > 7 {
		return &ValidationError{Field: "weekday", Reason: "must be 1 (Sunday) through 7 (Saturday)"}
	}

	bounds := []bound{
		{"sleep_duration_hours", s.SleepHours, 0, 24, false},
		{"wake_time_hour", s.WakeHour, 0, 24, true},
		{"resting_hr", s.RestingHR, 20, 250, false},
		{"running_minutes", s.RunningMinutes, 0, 1440, false},
	}
	for _, b := range bounds {
		if b.value == nil {
			continue
		}
		v := *b.value
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: b.field, Reason: "must be a finite number"}
		}
		if v < b.lo || v > b.hi || (b.hiStrict && v == b.hi) {
			return &ValidationError{Field: b.field, Reason: fmt.Sprintf("out of range [%g, %g]", b.lo, b.hi)}
		}
	}
	return nil
}

// Normalize fills a missing Weekday from the timestamp in loc.
func Normalize(s Snapshot, loc *time.Location) Snapshot {
	if s.Weekday == 0 {
		if loc == nil {
			loc = time.UTC
		}
		s.Weekday = int(s.Timestamp.In(loc).Weekday()) + 1
	}
	return s
}
