package node

import (
	"context"
	"time"
)

// Clock owns the wait between "schedule next wake" and the wake itself, the
// driver's only suspension point. Implementations decide how simulated time
// maps onto wall-clock time.
type Clock interface {
	// Sleep waits for the given span of simulated time. It returns the
	// context error when cancelled, releasing any pending timer.
	Sleep(ctx context.Context, d time.Duration) error
}

// ScaledClock maps simulated time onto wall-clock time with a scale factor:
// factor 1 runs in real time, factor 60 runs a simulated minute per second.
type ScaledClock struct {
	Factor float64
}

func (c ScaledClock) Sleep(ctx context.Context, d time.Duration) error {
	factor := c.Factor
	if factor <= 0 {
		factor = 1
	}
	wait := time.Duration(float64(d) / factor)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// InstantClock advances simulated time without waiting, for tests and
// as-fast-as-possible runs. It still honours cancellation.
type InstantClock struct{}

func (InstantClock) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
