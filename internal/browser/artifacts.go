// internal/browser/artifacts.go
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chromedp/cdproto/network"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// Capturable is the evidence surface a session exposes for failure capture.
type Capturable interface {
	Screenshot(ctx context.Context) ([]byte, error)
	DOM(ctx context.Context) (string, error)
	ConsoleEntries() []ConsoleEntry
	Cookies(ctx context.Context) ([]*network.Cookie, error)
}

// ArtifactSink writes failure evidence (screenshot, DOM snapshot, console
// log) for a case into a per-run directory.
type ArtifactSink struct {
	dir    string
	logger *zap.Logger
}

// NewArtifactSink creates the run's artifact directory under baseDir.
func NewArtifactSink(baseDir, runID string, logger *zap.Logger) (*ArtifactSink, error) {
	dir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}
	return &ArtifactSink{dir: dir, logger: logger.Named("artifacts")}, nil
}

// Dir returns the run's artifact directory.
func (a *ArtifactSink) Dir() string {
	return a.dir
}

// CaptureFailure records the session's current state for the named case.
// Capture is best-effort: each artifact is attempted independently and
// individual failures are logged rather than returned, since the session may
// already be in a broken state.
func (a *ArtifactSink) CaptureFailure(ctx context.Context, caseName string, s Capturable) {
	prefix := sanitizeName(caseName)

	if png, err := s.Screenshot(ctx); err != nil {
		a.logger.Warn("Failed to capture failure screenshot", zap.String("case", caseName), zap.Error(err))
	} else {
		a.write(prefix+".png", png, caseName)
	}

	if html, err := s.DOM(ctx); err != nil {
		a.logger.Warn("Failed to capture DOM snapshot", zap.String("case", caseName), zap.Error(err))
	} else {
		a.write(prefix+".html", []byte(html), caseName)
	}

	if entries := s.ConsoleEntries(); len(entries) > 0 {
		data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(entries, "", "  ")
		if err != nil {
			a.logger.Warn("Failed to serialize console log", zap.String("case", caseName), zap.Error(err))
		} else {
			a.write(prefix+".console.json", data, caseName)
		}
	}

	if cookies, err := s.Cookies(ctx); err != nil {
		a.logger.Warn("Failed to capture cookies", zap.String("case", caseName), zap.Error(err))
	} else if len(cookies) > 0 {
		data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(cookies, "", "  ")
		if err != nil {
			a.logger.Warn("Failed to serialize cookies", zap.String("case", caseName), zap.Error(err))
		} else {
			a.write(prefix+".cookies.json", data, caseName)
		}
	}
}

func (a *ArtifactSink) write(name string, data []byte, caseName string) {
	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		a.logger.Warn("Failed to write artifact", zap.String("path", path), zap.Error(err))
		return
	}
	a.logger.Info("Captured failure artifact", zap.String("case", caseName), zap.String("path", path))
}

// sanitizeName converts a case name into a safe file name fragment.
func sanitizeName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ', r == '/':
			return '_'
		default:
			return -1
		}
	}, name)
	if mapped == "" {
		return "case"
	}
	return mapped
}
