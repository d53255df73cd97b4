// Package wait provides the condition-convergence primitives used by the page
// objects: a retry loop that repeatedly performs a browser action and polls
// for a resulting state change, and a tolerant wait for transient UI signals
// such as AJAX loading indicators.
//
// The package is deliberately agnostic of the browser automation layer. The
// caller supplies an "act" capability (perform a UI action) and an "observe"
// capability (query a boolean condition) as closures; the session layer in
// internal/browser produces both.
//
// Basic usage:
//
//	out, err := wait.Converge(ctx,
//	    session.ClickAction("#open-address-modal"),
//	    session.VisibleCondition("#address-modal"),
//	    wait.WithMaxAttempts(3),
//	    wait.WithAttemptTimeout(2*time.Second),
//	)
package wait

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Action performs a side-effecting browser operation, e.g. clicking a button.
// It is invoked at most once per attempt and must be safe to repeat; the
// caller is responsible for idempotency.
type Action func(ctx context.Context) error

// Condition probes an externally observable boolean state, e.g. whether a
// modal is visible. Probe errors are treated as a false observation while
// polling and surfaced on the final ConvergenceError for diagnostics.
type Condition func(ctx context.Context) (bool, error)

// Converge repeatedly performs action and polls condition until the condition
// converges, bounded by attempt count and time.
//
// The condition is checked before the first action: a pre-existing state must
// not force a redundant action, so a modal that is already open is never
// clicked open again. On success the returned Outcome reports how many times
// the action ran (0 for a pre-converged state) and the elapsed wall-clock
// time. On exhaustion the error is a *ConvergenceError; if the action itself
// fails the error is an *ActionError and no further attempts are made.
func Converge(ctx context.Context, action Action, condition Condition, opts ...Option) (Outcome, error) {
	o := newOptions(opts)
	start := time.Now()

	var hardDeadline time.Time
	if o.totalTimeout > 0 {
		hardDeadline = start.Add(o.totalTimeout)
	}

	w := &waiter{opts: o}

	// Pre-check: act only if the condition does not already hold.
	converged, err := w.observe(ctx, condition)
	if err != nil {
		return Outcome{State: StateTimedOut, Elapsed: time.Since(start)}, err
	}
	if converged {
		out := Outcome{State: StateConverged, Attempts: 0, Elapsed: time.Since(start)}
		o.logger.Debug("condition already held, no action taken", zap.Duration("elapsed", out.Elapsed))
		return out, nil
	}

	attempts := 0
	budgetExhausted := false
	for attempt := 1; attempt <= o.maxAttempts && !budgetExhausted; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{State: StateTimedOut, Attempts: attempts, Elapsed: time.Since(start)}, err
		}
		if expired(hardDeadline) {
			break
		}

		attempts = attempt
		if err := action(ctx); err != nil {
			out := Outcome{State: StateActionFailed, Attempts: attempts, Elapsed: time.Since(start)}
			return out, &ActionError{Attempt: attempt, Err: err}
		}

		attemptDeadline := time.Now().Add(o.attemptTimeout)
		for {
			converged, err := w.observe(ctx, condition)
			if err != nil {
				return Outcome{State: StateTimedOut, Attempts: attempts, Elapsed: time.Since(start)}, err
			}
			if converged {
				out := Outcome{State: StateConverged, Attempts: attempts, Elapsed: time.Since(start)}
				o.logger.Debug("condition converged",
					zap.Int("attempt", attempt),
					zap.Duration("elapsed", out.Elapsed),
				)
				return out, nil
			}

			next := time.Now().Add(o.pollInterval)
			if expiresBy(hardDeadline, next) {
				// The total budget cannot fit another poll. Attempting
				// without polling in between would fire the action in a hot
				// loop, so stop scheduling attempts entirely.
				budgetExhausted = true
				break
			}
			if next.After(attemptDeadline) {
				break
			}
			if err := sleep(ctx, o.pollInterval); err != nil {
				return Outcome{State: StateTimedOut, Attempts: attempts, Elapsed: time.Since(start)}, err
			}
		}

		o.logger.Debug("attempt exhausted without convergence",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", o.maxAttempts),
		)
	}

	elapsed := time.Since(start)
	out := Outcome{State: StateTimedOut, Attempts: attempts, Elapsed: elapsed}
	return out, &ConvergenceError{
		Attempts:     attempts,
		Elapsed:      elapsed,
		Flaky:        w.flaky,
		LastProbeErr: w.lastProbeErr,
	}
}

// Until polls condition until it converges without performing any action. It
// is the degenerate form of Converge used for waits where nothing needs to be
// retried, such as an AJAX table filling in after navigation.
func Until(ctx context.Context, condition Condition, opts ...Option) (Outcome, error) {
	noop := func(context.Context) error { return nil }
	return Converge(ctx, noop, condition, opts...)
}

// waiter accumulates probe diagnostics across a single Converge invocation.
type waiter struct {
	opts         *options
	flaky        bool
	lastProbeErr error
}

// observe probes the condition once, applying the stability window when
// configured. It returns an error only for context cancellation; probe
// failures are recorded and reported as a false observation.
func (w *waiter) observe(ctx context.Context, condition Condition) (bool, error) {
	ok, err := condition(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		w.lastProbeErr = err
		return false, nil
	}
	if !ok {
		return false, nil
	}
	if w.opts.stability <= 0 {
		return true, nil
	}

	// The condition must hold through the settle window; a state that flips
	// back is a flaky observation, not convergence.
	if err := sleep(ctx, w.opts.stability); err != nil {
		return false, err
	}
	ok, err = condition(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		w.lastProbeErr = err
		w.flaky = true
		return false, nil
	}
	if !ok {
		w.flaky = true
		return false, nil
	}
	return true, nil
}

// sleep pauses for d, respecting context cancellation.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func expired(deadline time.Time) bool {
	return !deadline.IsZero() && !time.Now().Before(deadline)
}

func expiresBy(deadline, t time.Time) bool {
	return !deadline.IsZero() && t.After(deadline)
}
