// Package anomaly evaluates today's snapshot against a user's baseline.
//
// Rules are an explicit ordered list; the first rule that matches wins and at
// most one Anomaly is reported per evaluation. Evaluation is pure: the only
// input besides the snapshot and baseline is the supplied clock.
package anomaly

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/albapepper/ember/internal/baseline"
)

// Type identifies which rule produced an anomaly.
type Type string

const (
	LateWake          Type = "late_wake"
	ShortSleep        Type = "short_sleep"
	SkippedRun        Type = "skipped_run"
	ElevatedRestingHR Type = "elevated_resting_hr"
	ShortWorkout      Type = "short_workout"
)

const (
	// ZThreshold is the strict sigma bound; exactly 2.0 does not trigger.
	ZThreshold = 2.0

	minRunFrequency  = 0.6
	runGraceHours    = 3
	firstWorkWeekday = 2 // Monday
	lastWorkWeekday  = 6 // Friday
)

// --------------------------------------------------------------------------
// Descriptor
// --------------------------------------------------------------------------

// Anomaly describes the best-matching deviation for a day.
type Anomaly struct {
	Type    Type               `json:"type"`
	ZScore  *ZScore            `json:"z_score,omitempty"`
	Context map[string]float64 `json:"context"`
}

// ZScore is a deviation in standard-deviation units. Zero-variance history
// with an unequal observation yields ±Inf, which serializes as "+Inf"/"-Inf".
type ZScore float64

// IsUnbounded reports whether the deviation came from zero-variance history.
func (z ZScore) IsUnbounded() bool { return math.IsInf(float64(z), 0) }

// MarshalJSON writes finite scores as numbers rounded to 2 places and
// infinite ones as the strings "+Inf" and "-Inf".
func (z ZScore) MarshalJSON() ([]byte, error) {
	v := float64(z)
	switch {
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(round(v, 2))
}

// UnmarshalJSON accepts either encoding produced by MarshalJSON.
func (z *ZScore) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		switch s {
		case "+Inf":
			*z = ZScore(math.Inf(1))
		case "-Inf":
			*z = ZScore(math.Inf(-1))
		default:
			return fmt.Errorf("unknown z-score %q", s)
		}
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("parse z-score: %w", err)
	}
	*z = ZScore(v)
	return nil
}

// --------------------------------------------------------------------------
// Evaluation
// --------------------------------------------------------------------------

// Evaluate runs the rules in priority order and returns the first match, or
// nil when nothing matches or no baseline is available. now must already be
// in the user's calendar location.
func Evaluate(s baseline.Snapshot, b *baseline.Baseline, now time.Time) *Anomaly {
	if b == nil {
		return nil
	}
	for _, r := range rules {
		if a := r.Check(s, b, now); a != nil {
			return a
		}
	}
	return nil
}

// zScore returns (value-mean)/stddev and whether the rule may be evaluated.
// An undefined stat, or zero variance with value == mean, is not evaluable.
func zScore(value float64, st *baseline.Stat) (float64, bool) {
	if st == nil {
		return 0, false
	}
	diff := value - st.Mean
	if st.StdDev == 0 {
		if diff == 0 {
			return 0, false
		}
		if diff > 0 {
			return math.Inf(1), true
		}
		return math.Inf(-1), true
	}
	return diff / st.StdDev, true
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func zptr(z float64) *ZScore {
	v := ZScore(z)
	return &v
}
