package wait

import (
	"fmt"
	"time"
)

// ActionError wraps a failure of the caller-supplied action. The waiter never
// retries past an action failure; whether the action itself should be retried
// is the caller's decision, expressed by wrapping the action.
type ActionError struct {
	// Attempt is the 1-indexed attempt during which the action failed.
	Attempt int
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("wait: action failed on attempt %d: %v", e.Attempt, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// ConvergenceError reports that the observed condition never converged within
// the configured attempt and time budget.
type ConvergenceError struct {
	// Attempts is the number of times the action was invoked.
	Attempts int
	// Elapsed is the total wall-clock time spent across all attempts,
	// including polling and settle delays.
	Elapsed time.Duration
	// Flaky indicates the condition was observed true at least once but did
	// not hold through the stability window. This distinguishes "the action
	// never had an effect" from "the state flipped and flipped back".
	Flaky bool
	// LastProbeErr holds the most recent error returned by the condition
	// probe, if any. Probe errors are treated as a false observation while
	// polling, but are surfaced here for diagnostics.
	LastProbeErr error
}

func (e *ConvergenceError) Error() string {
	msg := fmt.Sprintf("wait: condition did not converge after %d attempt(s) in %s", e.Attempts, e.Elapsed.Round(time.Millisecond))
	if e.Flaky {
		msg += " (condition was observed but did not hold)"
	}
	if e.LastProbeErr != nil {
		msg += fmt.Sprintf("; last probe error: %v", e.LastProbeErr)
	}
	return msg
}

func (e *ConvergenceError) Unwrap() error { return e.LastProbeErr }
