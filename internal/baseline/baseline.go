// Package baseline maintains the bounded per-user snapshot window and derives
// the personal statistics an incoming snapshot is compared against.
//
// Statistics are recomputed on every evaluation and never persisted.
package baseline

import (
	"math"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// WindowLimit is the maximum number of snapshots kept per user.
const WindowLimit = 30

// DefaultMinSamples is the window length below which no baseline is produced.
const DefaultMinSamples = 7

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Snapshot is one day's set of health metrics for a user. Nil metrics were
// not reported and are excluded from statistics.
type Snapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	SleepHours     *float64  `json:"sleep_duration_hours,omitempty"`
	WakeHour       *float64  `json:"wake_time_hour,omitempty"`
	RestingHR      *float64  `json:"resting_hr,omitempty"`
	RunningMinutes *float64  `json:"running_minutes,omitempty"`
	Weekday        int       `json:"weekday"` // 1 = Sunday … 7 = Saturday
}

// Window is the ordered history of recent snapshots, oldest first.
type Window []Snapshot

// Stat is the mean and population standard deviation of one metric.
type Stat struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Count  int     `json:"count"`
}

// Baseline holds the derived statistics for a window. A nil *Stat means the
// metric had fewer than two values and cannot be evaluated.
type Baseline struct {
	Sleep          *Stat   `json:"sleep_duration_hours"`
	Wake           *Stat   `json:"wake_time_hour"`
	RestingHR      *Stat   `json:"resting_hr"`
	Workout        *Stat   `json:"workout_minutes"`
	RunFrequency   float64 `json:"run_frequency"`
	TypicalRunHour *int    `json:"typical_run_hour"`
	Samples        int     `json:"samples"`
}

// --------------------------------------------------------------------------
// Window operations
// --------------------------------------------------------------------------

// Append returns a new window with s pushed at the end, evicting the oldest
// entries beyond WindowLimit. The input window is not modified.
func Append(w Window, s Snapshot) Window {
	start := 0
	if len(w)+1 > WindowLimit {
		start = len(w) + 1 - WindowLimit
	}
	out := make(Window, 0, min(len(w)+1, WindowLimit))
	out = append(out, w[start:]...)
	return append(out, s)
}

// Compute derives the baseline for w. It returns nil when the window holds
// fewer than minSamples snapshots. Hour-of-day figures use loc.
func Compute(w Window, minSamples int, loc *time.Location) *Baseline {
	if minSamples < 1 {
		minSamples = 1
	}
	if len(w) < minSamples {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	var sleep, wake, hr, workout []float64
	runDays := 0
	hourSum := 0
	for _, s := range w {
		if s.SleepHours != nil {
			sleep = append(sleep, *s.SleepHours)
		}
		if s.WakeHour != nil {
			wake = append(wake, *s.WakeHour)
		}
		if s.RestingHR != nil {
			hr = append(hr, *s.RestingHR)
		}
		if s.RunningMinutes != nil && *s.RunningMinutes > 0 {
			workout = append(workout, *s.RunningMinutes)
			runDays++
			hourSum += s.Timestamp.In(loc).Hour()
		}
	}

	b := &Baseline{
		Sleep:        stat(sleep),
		Wake:         stat(wake),
		RestingHR:    stat(hr),
		Workout:      stat(workout),
		RunFrequency: float64(runDays) / float64(len(w)),
		Samples:      len(w),
	}
	if runDays > 0 {
		h := int(math.Round(float64(hourSum) / float64(runDays)))
		b.TypicalRunHour = &h
	}
	return b
}

// stat computes mean and population standard deviation (N divisor). Fewer
// than two values yields nil.
func stat(values []float64) *Stat {
	if len(values) < 2 {
		return nil
	}
	n := float64(len(values))
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	sq := 0.0
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return &Stat{Mean: mean, StdDev: math.Sqrt(sq / n), Count: len(values)}
}
