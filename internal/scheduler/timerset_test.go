package scheduler

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/wlamlab/wlam_node/internal/model"
)

func newTestSet(t *testing.T) *TimerSet {
	t.Helper()
	return NewTimerSet(rand.New(rand.NewSource(42)))
}

func TestDisabledSensorNeverFires(t *testing.T) {
	ts := newTestSet(t)
	if err := ts.Configure(model.Gas, 0, 0, 0.1, false); err != nil {
		t.Fatalf("configure: %v", err)
	}

	if got := ts.NextDue(model.Gas); got != model.Never {
		t.Fatalf("expected Never for disabled sensor, got %v", got)
	}
	for now := time.Duration(0); now < 100*time.Hour; now += time.Hour {
		if due := ts.CollectDueAndAdvance(now); len(due) != 0 {
			t.Fatalf("disabled sensor fired at %v: %v", now, due)
		}
	}
	if got := ts.NextDue(model.Gas); got != model.Never {
		t.Fatalf("disabled sensor due-time changed to %v", got)
	}
}

func TestEarliestDueIsMinimumOverSlots(t *testing.T) {
	ts := newTestSet(t)
	if got := ts.EarliestDue(); got != model.Never {
		t.Fatalf("empty set: expected Never, got %v", got)
	}

	if err := ts.Configure(model.Temperature, 0, 10*time.Second, 0, false); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := ts.Configure(model.Gas, 0, 6*time.Second, 0, false); err != nil {
		t.Fatalf("configure: %v", err)
	}

	if got, want := ts.EarliestDue(), 6*time.Second; got != want {
		t.Fatalf("earliest due = %v, want %v", got, want)
	}
}

func TestJitterFractionRejectedOutsideRange(t *testing.T) {
	ts := newTestSet(t)
	if err := ts.Configure(model.Temperature, 0, time.Second, -0.1, false); err == nil {
		t.Fatalf("expected error for negative jitter fraction")
	}
	if err := ts.Configure(model.Temperature, 0, time.Second, 1.5, false); err == nil {
		t.Fatalf("expected error for jitter fraction > 1")
	}
}

func TestConsecutiveGapsWithinJitterBounds(t *testing.T) {
	const (
		period = 10 * time.Second
		j      = 0.25
		cycles = 500
	)
	ts := newTestSet(t)
	if err := ts.Configure(model.Humidity, 0, period, j, false); err != nil {
		t.Fatalf("configure: %v", err)
	}

	lo := time.Duration(float64(period) * (1 - 2*j))
	hi := time.Duration(float64(period) * (1 + 2*j))

	prev := model.SimTime(0)
	for i := 0; i < cycles; i++ {
		due := ts.NextDue(model.Humidity)
		if due == model.Never {
			t.Fatalf("cycle %d: sensor unexpectedly disabled", i)
		}
		if i > 0 {
			gap := due - prev
			if gap < lo || gap > hi {
				t.Fatalf("cycle %d: gap %v outside [%v, %v]", i, gap, lo, hi)
			}
		}
		if fired := ts.CollectDueAndAdvance(due); len(fired) != 1 || fired[0] != model.Humidity {
			t.Fatalf("cycle %d: fired %v", i, fired)
		}
		prev = due
	}
}

func TestJitterRedrawnEachCycle(t *testing.T) {
	const period = 10 * time.Second
	ts := newTestSet(t)
	if err := ts.Configure(model.Temperature, 0, period, 0.5, false); err != nil {
		t.Fatalf("configure: %v", err)
	}

	gaps := make(map[time.Duration]bool)
	prev := model.SimTime(0)
	for i := 0; i < 50; i++ {
		due := ts.NextDue(model.Temperature)
		gaps[due-prev] = true
		ts.CollectDueAndAdvance(due)
		prev = due
	}
	if len(gaps) < 2 {
		t.Fatalf("expected varying gaps across cycles, got a single value")
	}
}

func TestCounterIncrementsByOnePerFiring(t *testing.T) {
	ts := newTestSet(t)
	if err := ts.Configure(model.Counter, 0, 5*time.Second, 0, true); err != nil {
		t.Fatalf("configure: %v", err)
	}

	if got := ts.CounterValue(); got != 0 {
		t.Fatalf("initial counter = %d, want 0", got)
	}
	for i := uint64(1); i <= 10; i++ {
		due := ts.NextDue(model.Counter)
		ts.CollectDueAndAdvance(due)
		if got := ts.CounterValue(); got != i {
			t.Fatalf("after firing %d: counter = %d", i, got)
		}
	}
}

func TestCollectDueLeavesOtherSlotsUntouched(t *testing.T) {
	ts := newTestSet(t)
	if err := ts.Configure(model.Gas, 0, 6*time.Second, 0, false); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := ts.Configure(model.Humidity, 0, 10*time.Second, 0, false); err != nil {
		t.Fatalf("configure: %v", err)
	}

	humBefore := ts.NextDue(model.Humidity)
	due := ts.CollectDueAndAdvance(6 * time.Second)
	if len(due) != 1 || due[0] != model.Gas {
		t.Fatalf("expected only gas due at t=6s, got %v", due)
	}
	if got := ts.NextDue(model.Humidity); got != humBefore {
		t.Fatalf("humidity due-time moved from %v to %v", humBefore, got)
	}
}

func TestOneShotDisableWhenPeriodDropsToZero(t *testing.T) {
	ts := newTestSet(t)
	if err := ts.Configure(model.Temperature, 0, 10*time.Second, 0, false); err != nil {
		t.Fatalf("configure: %v", err)
	}
	// Simulate a reconfiguration to period <= 0 between firings.
	ts.slots[model.Temperature].Period = 0

	ts.CollectDueAndAdvance(10 * time.Second)
	if got := ts.NextDue(model.Temperature); got != model.Never {
		t.Fatalf("expected Never after one-shot disable, got %v", got)
	}
}

func TestLastValueNaNUntilObserved(t *testing.T) {
	ts := newTestSet(t)
	if !math.IsNaN(ts.LastValue(model.Temperature)) {
		t.Fatalf("expected NaN before first observation")
	}
	ts.Observe(model.Temperature, 21.5)
	if got := ts.LastValue(model.Temperature); got != 21.5 {
		t.Fatalf("last value = %v, want 21.5", got)
	}
}

func TestDueTimeNeverBeforeItsBase(t *testing.T) {
	ts := NewTimerSet(rand.New(rand.NewSource(7)))
	if err := ts.Configure(model.Gas, 0, 4*time.Second, 1.0, false); err != nil {
		t.Fatalf("configure: %v", err)
	}
	now := model.SimTime(0)
	for i := 0; i < 200; i++ {
		due := ts.NextDue(model.Gas)
		if due < now {
			t.Fatalf("cycle %d: due %v before its base %v", i, due, now)
		}
		ts.CollectDueAndAdvance(due)
		now = due
	}
}
