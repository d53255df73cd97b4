package wait

import "time"

// State describes the terminal state of a wait invocation.
type State int

const (
	// StateConverged means the condition was observed true within budget.
	StateConverged State = iota
	// StateTimedOut means every attempt was exhausted without convergence.
	StateTimedOut
	// StateActionFailed means the supplied action itself returned an error.
	StateActionFailed
)

func (s State) String() string {
	switch s {
	case StateConverged:
		return "converged"
	case StateTimedOut:
		return "timed_out"
	case StateActionFailed:
		return "action_failed"
	default:
		return "unknown"
	}
}

// Outcome is the transient record of a single wait invocation. It exists
// only for the duration of the call and carries no cross-invocation state.
type Outcome struct {
	State State
	// Attempts is the number of times the action was invoked, 1-indexed.
	// Zero means the condition already held before any action was needed.
	Attempts int
	// Elapsed is the total wall-clock time of the invocation.
	Elapsed time.Duration
}
