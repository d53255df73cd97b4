// internal/wait/wait_test.go
package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fast option sets keep the polling loops tight so the tests run quickly.
func fastOpts(extra ...Option) []Option {
	opts := []Option{
		WithAttemptTimeout(40 * time.Millisecond),
		WithPollInterval(5 * time.Millisecond),
	}
	return append(opts, extra...)
}

// neverTrue is a condition that never converges.
func neverTrue(ctx context.Context) (bool, error) { return false, nil }

func TestConverge(t *testing.T) {
	ctx := context.Background()

	t.Run("should return immediately without acting when condition already holds", func(t *testing.T) {
		actions := 0
		out, err := Converge(ctx,
			func(ctx context.Context) error { actions++; return nil },
			func(ctx context.Context) (bool, error) { return true, nil },
			fastOpts()...,
		)
		require.NoError(t, err)
		assert.Equal(t, StateConverged, out.State)
		assert.Equal(t, 0, out.Attempts, "pre-existing state must not force a redundant action")
		assert.Equal(t, 0, actions)
	})

	t.Run("should invoke the action exactly maxAttempts times when condition never converges", func(t *testing.T) {
		actions := 0
		out, err := Converge(ctx,
			func(ctx context.Context) error { actions++; return nil },
			neverTrue,
			fastOpts(WithMaxAttempts(3))...,
		)
		require.Error(t, err)

		var convErr *ConvergenceError
		require.ErrorAs(t, err, &convErr)
		assert.Equal(t, 3, convErr.Attempts)
		assert.Equal(t, 3, actions)
		assert.Equal(t, StateTimedOut, out.State)
		assert.False(t, convErr.Flaky)
	})

	t.Run("should report a single attempt when maxAttempts is one", func(t *testing.T) {
		actions := 0
		_, err := Converge(ctx,
			func(ctx context.Context) error { actions++; return nil },
			neverTrue,
			fastOpts(WithMaxAttempts(1))...,
		)
		var convErr *ConvergenceError
		require.ErrorAs(t, err, &convErr)
		assert.Equal(t, 1, convErr.Attempts)
		assert.Equal(t, 1, actions)
	})

	t.Run("should converge on attempt k with exactly k action invocations", func(t *testing.T) {
		actions := 0
		// The condition flips true only after the second action has run.
		out, err := Converge(ctx,
			func(ctx context.Context) error { actions++; return nil },
			func(ctx context.Context) (bool, error) { return actions >= 2, nil },
			fastOpts(WithMaxAttempts(3))...,
		)
		require.NoError(t, err)
		assert.Equal(t, StateConverged, out.State)
		assert.Equal(t, 2, out.Attempts)
		assert.Equal(t, 2, actions)
	})

	t.Run("should propagate an action failure immediately without further attempts", func(t *testing.T) {
		actions := 0
		boom := errors.New("element detached")
		out, err := Converge(ctx,
			func(ctx context.Context) error {
				actions++
				if actions == 2 {
					return boom
				}
				return nil
			},
			neverTrue,
			fastOpts(WithMaxAttempts(5))...,
		)
		var actErr *ActionError
		require.ErrorAs(t, err, &actErr)
		assert.Equal(t, 2, actErr.Attempt)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 2, actions, "no attempt may follow a failed action")
		assert.Equal(t, StateActionFailed, out.State)
	})

	t.Run("should report non-decreasing elapsed time for larger attempt budgets", func(t *testing.T) {
		run := func(attempts int) time.Duration {
			_, err := Converge(ctx,
				func(ctx context.Context) error { return nil },
				neverTrue,
				fastOpts(WithMaxAttempts(attempts))...,
			)
			var convErr *ConvergenceError
			require.ErrorAs(t, err, &convErr)
			return convErr.Elapsed
		}
		one := run(1)
		four := run(4)
		assert.GreaterOrEqual(t, four, one)
	})

	t.Run("should mark the wait flaky when the condition does not hold through the stability window", func(t *testing.T) {
		probes := 0
		_, err := Converge(ctx,
			func(ctx context.Context) error { return nil },
			func(ctx context.Context) (bool, error) {
				probes++
				// True on every other probe: observed, then gone by the
				// stability re-check.
				return probes%2 == 1, nil
			},
			fastOpts(WithMaxAttempts(2), WithStability(5*time.Millisecond))...,
		)
		var convErr *ConvergenceError
		require.ErrorAs(t, err, &convErr)
		assert.True(t, convErr.Flaky, "a condition that flipped and flipped back must be reported as flaky")
	})

	t.Run("should treat probe errors as a false observation and surface the last one", func(t *testing.T) {
		probeErr := errors.New("node not found")
		_, err := Converge(ctx,
			func(ctx context.Context) error { return nil },
			func(ctx context.Context) (bool, error) { return false, probeErr },
			fastOpts(WithMaxAttempts(1))...,
		)
		var convErr *ConvergenceError
		require.ErrorAs(t, err, &convErr)
		assert.ErrorIs(t, convErr, probeErr)
	})

	t.Run("should stop early when the total timeout expires", func(t *testing.T) {
		actions := 0
		start := time.Now()
		_, err := Converge(ctx,
			func(ctx context.Context) error { actions++; return nil },
			neverTrue,
			WithMaxAttempts(100),
			WithAttemptTimeout(20*time.Millisecond),
			WithPollInterval(5*time.Millisecond),
			WithTotalTimeout(60*time.Millisecond),
		)
		var convErr *ConvergenceError
		require.ErrorAs(t, err, &convErr)
		assert.Less(t, actions, 100)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("should keep polling between attempts as the total timeout nears", func(t *testing.T) {
		// When the remaining budget cannot fit another poll, the waiter must
		// stop attempting rather than re-fire the action back to back.
		var invocations []time.Time
		_, err := Converge(ctx,
			func(ctx context.Context) error { invocations = append(invocations, time.Now()); return nil },
			neverTrue,
			WithMaxAttempts(100),
			WithAttemptTimeout(20*time.Millisecond),
			WithPollInterval(5*time.Millisecond),
			WithTotalTimeout(60*time.Millisecond),
		)
		var convErr *ConvergenceError
		require.ErrorAs(t, err, &convErr)

		// At most one action per ~20ms attempt window fits into 60ms.
		require.NotEmpty(t, invocations)
		assert.LessOrEqual(t, len(invocations), 5)
		for i := 1; i < len(invocations); i++ {
			gap := invocations[i].Sub(invocations[i-1])
			assert.GreaterOrEqual(t, gap, 4*time.Millisecond,
				"attempt %d fired %s after attempt %d with no polling in between", i+1, gap, i)
		}
	})

	t.Run("should return the context error on cancellation", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		probes := 0
		_, err := Converge(cancelCtx,
			func(ctx context.Context) error { return nil },
			func(ctx context.Context) (bool, error) {
				probes++
				if probes == 3 {
					cancel()
				}
				return false, nil
			},
			fastOpts(WithMaxAttempts(10))...,
		)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestUntil(t *testing.T) {
	ctx := context.Background()

	t.Run("should converge once the condition holds", func(t *testing.T) {
		probes := 0
		out, err := Until(ctx,
			func(ctx context.Context) (bool, error) {
				probes++
				return probes >= 3, nil
			},
			fastOpts()...,
		)
		require.NoError(t, err)
		assert.Equal(t, StateConverged, out.State)
	})

	t.Run("should time out when the condition never holds", func(t *testing.T) {
		_, err := Until(ctx, neverTrue, fastOpts(WithMaxAttempts(1))...)
		var convErr *ConvergenceError
		require.ErrorAs(t, err, &convErr)
	})
}

func TestConvergenceErrorMessage(t *testing.T) {
	err := &ConvergenceError{Attempts: 3, Elapsed: 6 * time.Second, Flaky: true}
	msg := err.Error()
	assert.Contains(t, msg, "3 attempt(s)")
	assert.Contains(t, msg, "did not hold")
}
