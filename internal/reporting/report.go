// Package reporting renders run results into machine-readable report files
// for CI ingestion.
package reporting

import (
	"time"

	"github.com/hollis-qa/waypoint/internal/suite"
)

// CaseReport is the serializable outcome of one case.
type CaseReport struct {
	Suite   string   `json:"suite"`
	Name    string   `json:"name"`
	Tags    []string `json:"tags,omitempty"`
	Status  string   `json:"status"`
	Error   string   `json:"error,omitempty"`
	Elapsed float64  `json:"elapsed_seconds"`
}

// RunReport is the serializable summary of one run.
type RunReport struct {
	RunID     string       `json:"run_id"`
	Tool      string       `json:"tool"`
	Version   string       `json:"version"`
	Target    string       `json:"target"`
	StartedAt time.Time    `json:"started_at"`
	Elapsed   float64      `json:"elapsed_seconds"`
	Passed    int          `json:"passed"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Cases     []CaseReport `json:"cases"`
}

// BuildReport converts aggregated results into the report model.
func BuildReport(results *suite.Results, target, version string) *RunReport {
	passed, failed, skipped := results.Counts()
	report := &RunReport{
		RunID:     results.RunID,
		Tool:      "waypoint",
		Version:   version,
		Target:    target,
		StartedAt: results.Started.UTC(),
		Elapsed:   results.Elapsed().Seconds(),
		Passed:    passed,
		Failed:    failed,
		Skipped:   skipped,
	}
	for _, res := range results.All() {
		cr := CaseReport{
			Suite:   res.Suite,
			Name:    res.Name,
			Tags:    res.Tags,
			Status:  string(res.Status),
			Elapsed: res.Elapsed.Seconds(),
		}
		if res.Err != nil {
			cr.Error = res.Err.Error()
		}
		report.Cases = append(report.Cases, cr)
	}
	return report
}
