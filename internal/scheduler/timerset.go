package scheduler

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/wlamlab/wlam_node/internal/model"
)

// Slot is the scheduling state of one sensor kind.
type Slot struct {
	Kind      model.SensorKind
	Period    time.Duration // <= 0 means disabled
	Jitter    float64       // fraction of Period, symmetric bound
	NextDue   model.SimTime
	LastValue float64 // NaN until first observation
	Count     uint64  // counter slots only
	isCounter bool
}

// TimerSet owns the per-sensor due-times and the counter state. It is a
// fixed-size array keyed by kind; no allocation happens on the firing path.
type TimerSet struct {
	slots [model.KindCount]Slot
	rng   *rand.Rand
}

func NewTimerSet(rng *rand.Rand) *TimerSet {
	ts := &TimerSet{rng: rng}
	for k := model.Temperature; k < model.KindCount; k++ {
		ts.slots[k] = Slot{
			Kind:      k,
			NextDue:   model.Never,
			LastValue: math.NaN(),
		}
	}
	return ts
}

// Configure sets up one slot. A period <= 0 disables the sensor for good,
// which is a legitimate configuration, not an error. The first due-time is
// drawn as now + period + uniform(-period*jitter, +period*jitter).
func (ts *TimerSet) Configure(kind model.SensorKind, now model.SimTime, period time.Duration, jitter float64, isCounter bool) error {
	if kind < 0 || kind >= model.KindCount {
		return fmt.Errorf("scheduler: unknown sensor kind %d", kind)
	}
	if jitter < 0 || jitter > 1 {
		return fmt.Errorf("scheduler: jitter fraction %v outside [0,1]", jitter)
	}
	s := &ts.slots[kind]
	s.Period = period
	s.Jitter = jitter
	s.isCounter = isCounter
	if period > 0 {
		s.NextDue = now + period + ts.jitterOf(s)
	} else {
		s.NextDue = model.Never
	}
	return nil
}

// EarliestDue returns the minimum due-time across all slots, or Never when
// every sensor is disabled. It is recomputed from the slots on every call;
// there is no cached value to drift.
func (ts *TimerSet) EarliestDue() model.SimTime {
	earliest := model.Never
	for i := range ts.slots {
		if ts.slots[i].NextDue < earliest {
			earliest = ts.slots[i].NextDue
		}
	}
	return earliest
}

// CollectDueAndAdvance fires every slot whose due-time has been reached and
// reschedules it with a fresh jitter draw. Counter slots increment their
// count by exactly one per firing. Slots not yet due are left untouched.
// The returned kinds are in fixed kind order.
func (ts *TimerSet) CollectDueAndAdvance(now model.SimTime) []model.SensorKind {
	var due []model.SensorKind
	for i := range ts.slots {
		s := &ts.slots[i]
		if s.NextDue > now {
			continue
		}
		if s.isCounter {
			s.Count++
		}
		due = append(due, s.Kind)
		if s.Period > 0 {
			s.NextDue = now + s.Period + ts.jitterOf(s)
		} else {
			s.NextDue = model.Never
		}
	}
	return due
}

// Observe records the last sampled value of a sensing slot.
func (ts *TimerSet) Observe(kind model.SensorKind, value float64) {
	if kind >= 0 && kind < model.KindCount {
		ts.slots[kind].LastValue = value
	}
}

// LastValue returns the most recent observation for a kind (NaN before the
// first sample).
func (ts *TimerSet) LastValue(kind model.SensorKind) float64 {
	return ts.slots[kind].LastValue
}

// CounterValue returns the current monotonic count of the counter slot.
func (ts *TimerSet) CounterValue() uint64 {
	return ts.slots[model.Counter].Count
}

// NextDue exposes a slot's due-time, mainly for diagnostics.
func (ts *TimerSet) NextDue(kind model.SensorKind) model.SimTime {
	return ts.slots[kind].NextDue
}

// jitterOf draws a symmetric perturbation bounded by period*jitter. It is
// re-drawn on every rescheduling so equal-period sensors do not phase-lock.
func (ts *TimerSet) jitterOf(s *Slot) time.Duration {
	if s.Jitter == 0 || s.Period <= 0 {
		return 0
	}
	bound := float64(s.Period) * s.Jitter
	return time.Duration((ts.rng.Float64()*2 - 1) * bound)
}
