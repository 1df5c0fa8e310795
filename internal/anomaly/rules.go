package anomaly

import (
	"time"

	"github.com/albapepper/ember/internal/baseline"
)

// Rule is a pure predicate plus descriptor builder. Check returns nil when
// the rule does not fire or cannot be evaluated.
type Rule struct {
	Type  Type
	Check func(s baseline.Snapshot, b *baseline.Baseline, now time.Time) *Anomaly
}

// rules is the priority order. Changing it changes which anomaly wins.
var rules = []Rule{
	{Type: LateWake, Check: checkLateWake},
	{Type: ShortSleep, Check: checkShortSleep},
	{Type: SkippedRun, Check: checkSkippedRun},
	{Type: ElevatedRestingHR, Check: checkRestingHR},
	{Type: ShortWorkout, Check: checkShortWorkout},
}

// Rules returns the rules in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

func checkLateWake(s baseline.Snapshot, b *baseline.Baseline, _ time.Time) *Anomaly {
	if s.Weekday < firstWorkWeekday || s.Weekday > lastWorkWeekday || s.WakeHour == nil {
		return nil
	}
	z, ok := zScore(*s.WakeHour, b.Wake)
	if !ok || z <= ZThreshold {
		return nil
	}
	return &Anomaly{
		Type:   LateWake,
		ZScore: zptr(z),
		Context: map[string]float64{
			"minutes_late": round((*s.WakeHour-b.Wake.Mean)*60, 0),
			"usual_hour":   round(b.Wake.Mean, 1),
			"actual_hour":  round(*s.WakeHour, 1),
		},
	}
}

func checkShortSleep(s baseline.Snapshot, b *baseline.Baseline, _ time.Time) *Anomaly {
	if s.SleepHours == nil {
		return nil
	}
	z, ok := zScore(*s.SleepHours, b.Sleep)
	if !ok || z >= -ZThreshold {
		return nil
	}
	return &Anomaly{
		Type:   ShortSleep,
		ZScore: zptr(z),
		Context: map[string]float64{
			"hours_short":  round(b.Sleep.Mean-*s.SleepHours, 1),
			"usual_hours":  round(b.Sleep.Mean, 1),
			"actual_hours": round(*s.SleepHours, 1),
		},
	}
}

// checkSkippedRun is time-gated rather than statistical: a habitual runner
// who has logged zero minutes well past their usual hour.
func checkSkippedRun(s baseline.Snapshot, b *baseline.Baseline, now time.Time) *Anomaly {
	if b.TypicalRunHour == nil || s.RunningMinutes == nil {
		return nil
	}
	if b.RunFrequency <= minRunFrequency || *s.RunningMinutes != 0 {
		return nil
	}
	if now.Hour() <= *b.TypicalRunHour+runGraceHours {
		return nil
	}
	return &Anomaly{
		Type: SkippedRun,
		Context: map[string]float64{
			"run_frequency": round(b.RunFrequency, 2),
			"typical_hour":  float64(*b.TypicalRunHour),
		},
	}
}

func checkRestingHR(s baseline.Snapshot, b *baseline.Baseline, _ time.Time) *Anomaly {
	if s.RestingHR == nil {
		return nil
	}
	z, ok := zScore(*s.RestingHR, b.RestingHR)
	if !ok || z <= ZThreshold {
		return nil
	}
	return &Anomaly{
		Type:   ElevatedRestingHR,
		ZScore: zptr(z),
		Context: map[string]float64{
			"usual_bpm":  round(b.RestingHR.Mean, 0),
			"actual_bpm": round(*s.RestingHR, 0),
		},
	}
}

func checkShortWorkout(s baseline.Snapshot, b *baseline.Baseline, _ time.Time) *Anomaly {
	if s.RunningMinutes == nil || *s.RunningMinutes <= 0 {
		return nil
	}
	z, ok := zScore(*s.RunningMinutes, b.Workout)
	if !ok || z >= -ZThreshold {
		return nil
	}
	return &Anomaly{
		Type:   ShortWorkout,
		ZScore: zptr(z),
		Context: map[string]float64{
			"usual_minutes":  round(b.Workout.Mean, 0),
			"actual_minutes": round(*s.RunningMinutes, 0),
		},
	}
}
