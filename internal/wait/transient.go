package wait

import (
	"context"
	"time"
)

// TransientResult classifies the observed lifecycle of a transient UI signal,
// such as a "processing" spinner that may or may not appear before
// AJAX-loaded content is trusted.
type TransientResult int

const (
	// ObservedThenCleared means the signal appeared and then went away.
	ObservedThenCleared TransientResult = iota
	// NeverObserved means the signal did not appear within the appear
	// window. This is expected when the data was already cached and is not
	// an error.
	NeverObserved
	// ObservedStuck means the signal appeared but never cleared.
	ObservedStuck
)

func (r TransientResult) String() string {
	switch r {
	case ObservedThenCleared:
		return "observed_then_cleared"
	case NeverObserved:
		return "never_observed"
	case ObservedStuck:
		return "observed_stuck"
	default:
		return "unknown"
	}
}

// AwaitTransient waits on a signal that is expected to appear briefly and
// then clear. It polls the probe for up to appearWindow; if the signal never
// appears that is a success (the transient state was skipped entirely). Once
// observed, the probe is polled for up to clearTimeout until it reports
// false. A signal that sticks is returned as ObservedStuck together with a
// *ConvergenceError.
func AwaitTransient(ctx context.Context, probe Condition, appearWindow, clearTimeout time.Duration, opts ...Option) (TransientResult, error) {
	o := newOptions(opts)
	start := time.Now()

	observed, err := pollUntil(ctx, probe, true, appearWindow, o.pollInterval)
	if err != nil {
		return NeverObserved, err
	}
	if !observed {
		return NeverObserved, nil
	}

	cleared, err := pollUntil(ctx, probe, false, clearTimeout, o.pollInterval)
	if err != nil {
		return ObservedStuck, err
	}
	if !cleared {
		return ObservedStuck, &ConvergenceError{
			Attempts: 1,
			Elapsed:  time.Since(start),
		}
	}
	return ObservedThenCleared, nil
}

// pollUntil polls the probe until it reports want, the window elapses, or the
// context is cancelled. Probe errors count as a false observation.
func pollUntil(ctx context.Context, probe Condition, want bool, window, interval time.Duration) (bool, error) {
	deadline := time.Now().Add(window)
	for {
		got, err := probe(ctx)
		if err != nil && ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err == nil && got == want {
			return true, nil
		}
		if time.Now().Add(interval).After(deadline) {
			return false, nil
		}
		if err := sleep(ctx, interval); err != nil {
			return false, err
		}
	}
}
