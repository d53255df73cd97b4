// internal/reporting/junit_reporter.go
package reporting

import (
	"fmt"
	"io"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// junitReporter renders the report as JUnit XML for CI systems.
type junitReporter struct {
	out    io.Writer
	closer io.Closer
	logger *zap.Logger
}

func (r *junitReporter) Write(report *RunReport) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("testsuites")
	root.CreateAttr("name", report.Tool)
	root.CreateAttr("tests", strconv.Itoa(len(report.Cases)))
	root.CreateAttr("failures", strconv.Itoa(report.Failed))
	root.CreateAttr("skipped", strconv.Itoa(report.Skipped))
	root.CreateAttr("time", formatSeconds(report.Elapsed))

	for _, suiteName := range suiteOrder(report.Cases) {
		cases := casesOf(report.Cases, suiteName)
		el := root.CreateElement("testsuite")
		el.CreateAttr("name", suiteName)
		el.CreateAttr("tests", strconv.Itoa(len(cases)))
		el.CreateAttr("failures", strconv.Itoa(countStatus(cases, "failed")))
		el.CreateAttr("skipped", strconv.Itoa(countStatus(cases, "skipped")))
		el.CreateAttr("timestamp", report.StartedAt.Format("2006-01-02T15:04:05"))

		for _, c := range cases {
			tc := el.CreateElement("testcase")
			tc.CreateAttr("name", c.Name)
			tc.CreateAttr("classname", report.Tool+"."+suiteName)
			tc.CreateAttr("time", formatSeconds(c.Elapsed))

			switch c.Status {
			case "failed":
				failure := tc.CreateElement("failure")
				failure.CreateAttr("message", c.Error)
			case "skipped":
				tc.CreateElement("skipped")
			}
		}
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(r.out); err != nil {
		return fmt.Errorf("failed to write JUnit report: %w", err)
	}
	r.logger.Debug("Report written", zap.String("run_id", report.RunID), zap.Int("cases", len(report.Cases)))
	return nil
}

func (r *junitReporter) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// suiteOrder returns the distinct suite names in first-seen order.
func suiteOrder(cases []CaseReport) []string {
	seen := map[string]bool{}
	var order []string
	for _, c := range cases {
		if !seen[c.Suite] {
			seen[c.Suite] = true
			order = append(order, c.Suite)
		}
	}
	return order
}

func casesOf(cases []CaseReport, suiteName string) []CaseReport {
	var out []CaseReport
	for _, c := range cases {
		if c.Suite == suiteName {
			out = append(out, c)
		}
	}
	return out
}

func countStatus(cases []CaseReport, status string) int {
	n := 0
	for _, c := range cases {
		if c.Status == status {
			n++
		}
	}
	return n
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
