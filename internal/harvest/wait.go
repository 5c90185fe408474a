package harvest

import (
	"context"
	"time"

	herrors "sjsage522/asinharvester/pkg/errors"
)

// Clock abstracts time so loaders can be driven deterministically in tests
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the wall clock
type RealClock struct{}

// Now implements Clock
func (RealClock) Now() time.Time {
	return time.Now()
}

// Sleep implements Clock
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StabilityOptions bounds a wait-for-stability loop
type StabilityOptions struct {
	// MaxAttempts caps the number of measurements
	MaxAttempts int
	// Threshold is how many consecutive unchanged measurements count as stable
	Threshold int
	// Settle is slept between triggering growth and measuring
	Settle time.Duration
}

// StabilityProbe drives a wait-for-stability loop
type StabilityProbe struct {
	// Grow triggers more content, e.g. a scroll. Optional.
	Grow func(ctx context.Context) error
	// Measure returns the quantity that must stop changing
	Measure func(ctx context.Context) (int, error)
	// Stagnant is called after each unchanged measurement with the current
	// streak length. Returning true resets the streak. Optional.
	Stagnant func(ctx context.Context, streak int) (bool, error)
}

// Stability is the outcome of WaitForStability
type Stability struct {
	Count    int
	Attempts int
	Stable   bool
}

// WaitForStability repeats grow, settle, measure until the measurement is
// unchanged for opts.Threshold consecutive attempts or opts.MaxAttempts is
// spent. Running out of attempts returns the last state together with a
// timeout error; probe and context errors abort immediately.
func WaitForStability(ctx context.Context, clock Clock, opts StabilityOptions, probe StabilityProbe) (Stability, error) {
	var state Stability
	last, streak := 0, 0

	for state.Attempts < opts.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		if probe.Grow != nil {
			if err := probe.Grow(ctx); err != nil {
				return state, err
			}
		}
		if err := clock.Sleep(ctx, opts.Settle); err != nil {
			return state, err
		}
		count, err := probe.Measure(ctx)
		if err != nil {
			return state, err
		}
		state.Attempts++
		state.Count = count

		if count != last {
			streak = 0
			last = count
			continue
		}

		streak++
		if probe.Stagnant != nil {
			reset, err := probe.Stagnant(ctx, streak)
			if err != nil {
				return state, err
			}
			if reset {
				streak = 0
				continue
			}
		}
		if streak >= opts.Threshold {
			state.Stable = true
			return state, nil
		}
	}

	return state, herrors.NewTimeout("loader", state.Attempts)
}

// waitFor polls cond every interval until it holds, the deadline passes, or
// ctx is done. It reports whether cond held.
func waitFor(ctx context.Context, clock Clock, timeout, interval time.Duration, cond func() (bool, error)) (bool, error) {
	deadline := clock.Now().Add(timeout)
	for {
		ok, err := cond()
		if err != nil || ok {
			return ok, err
		}
		if !clock.Now().Before(deadline) {
			return false, nil
		}
		if err := clock.Sleep(ctx, interval); err != nil {
			return false, err
		}
	}
}
