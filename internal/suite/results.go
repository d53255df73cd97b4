// internal/suite/results.go
package suite

import (
	"sync"
	"time"
)

// CaseStatus is the terminal state of one executed case.
type CaseStatus string

const (
	StatusPassed  CaseStatus = "passed"
	StatusFailed  CaseStatus = "failed"
	StatusSkipped CaseStatus = "skipped"
)

// CaseResult records the outcome of a single case.
type CaseResult struct {
	Suite   string
	Name    string
	Tags    []string
	Status  CaseStatus
	Err     error
	Elapsed time.Duration
}

// Results aggregates case outcomes for one run. It is safe for concurrent
// recording from the runner's workers.
type Results struct {
	RunID   string
	Started time.Time

	mu      sync.Mutex
	results []CaseResult
}

func NewResults(runID string) *Results {
	return &Results{RunID: runID, Started: time.Now()}
}

// Record appends one case outcome.
func (r *Results) Record(res CaseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

// All returns a copy of the recorded outcomes.
func (r *Results) All() []CaseResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CaseResult, len(r.results))
	copy(out, r.results)
	return out
}

// Counts returns the number of passed, failed and skipped cases.
func (r *Results) Counts() (passed, failed, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.results {
		switch res.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return passed, failed, skipped
}

// OK reports whether the run had no failures.
func (r *Results) OK() bool {
	_, failed, _ := r.Counts()
	return failed == 0
}

// Failures returns only the failed case outcomes.
func (r *Results) Failures() []CaseResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CaseResult
	for _, res := range r.results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Elapsed returns the wall-clock duration since the run started.
func (r *Results) Elapsed() time.Duration {
	return time.Since(r.Started)
}
