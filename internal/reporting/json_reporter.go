// internal/reporting/json_reporter.go
package reporting

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonReporter renders the report as indented JSON.
type jsonReporter struct {
	out    io.Writer
	closer io.Closer
	logger *zap.Logger
}

func (r *jsonReporter) Write(report *RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	data = append(data, '\n')
	if _, err := r.out.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	r.logger.Debug("Report written", zap.String("run_id", report.RunID), zap.Int("cases", len(report.Cases)))
	return nil
}

func (r *jsonReporter) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
