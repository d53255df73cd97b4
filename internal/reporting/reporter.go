// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// Reporter renders a run report to its output. Close flushes and releases the
// underlying writer.
type Reporter interface {
	Write(report *RunReport) error
	Close() error
}

// Formats supported by New.
const (
	FormatJSON  = "json"
	FormatJUnit = "junit"
)

// New builds a reporter for the given format. An empty outputPath writes to
// stdout.
func New(format, outputPath string, logger *zap.Logger) (Reporter, error) {
	out, closer, err := openOutput(outputPath)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON:
		return &jsonReporter{out: out, closer: closer, logger: logger.Named("json_reporter")}, nil
	case FormatJUnit:
		return &junitReporter{out: out, closer: closer, logger: logger.Named("junit_reporter")}, nil
	default:
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("unsupported report format: %q (supported: %s, %s)", format, FormatJSON, FormatJUnit)
	}
}

func openOutput(path string) (io.Writer, io.Closer, error) {
	if path == "" {
		return os.Stdout, nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file %s: %w", path, err)
	}
	return f, f, nil
}
