// internal/suite/runner.go
package suite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hollis-qa/waypoint/internal/browser"
	"github.com/hollis-qa/waypoint/internal/config"
)

// ArtifactRecorder captures failure evidence for a case. Satisfied by
// browser.ArtifactSink.
type ArtifactRecorder interface {
	CaptureFailure(ctx context.Context, caseName string, s browser.Capturable)
}

// errFailFast stops the remaining cases after the first failure when the run
// is configured to fail fast. It is internal to the runner and never surfaces
// to callers.
var errFailFast = errors.New("stopping after first failure")

// Runner executes suites with bounded parallelism. Case starts are paced so
// that browser tabs are not all spawned in the same instant.
type Runner struct {
	cfg       *config.Config
	logger    *zap.Logger
	sessions  SessionFactory
	artifacts ArtifactRecorder
}

// NewRunner builds a runner. artifacts may be nil when failure capture is
// disabled.
func NewRunner(cfg *config.Config, logger *zap.Logger, sessions SessionFactory, artifacts ArtifactRecorder) *Runner {
	return &Runner{
		cfg:       cfg,
		logger:    logger.Named("runner"),
		sessions:  sessions,
		artifacts: artifacts,
	}
}

// Run executes every selected case across the given suites and returns the
// aggregated results. The returned error reports infrastructure problems
// (context cancellation, session creation); case failures are reported
// through Results only.
func (r *Runner) Run(ctx context.Context, runID string, suites []Suite) (*Results, error) {
	results := NewResults(runID)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Suite.Parallelism)
	limiter := rate.NewLimiter(rate.Limit(r.cfg.Suite.StartRate), 1)

	total := 0
	for _, s := range suites {
		for _, c := range s.Cases {
			if !matchesTags(c.Tags, r.cfg.Run.Tags) {
				results.Record(CaseResult{Suite: s.Name, Name: c.Name, Tags: c.Tags, Status: StatusSkipped})
				continue
			}
			total++

			suiteName, tc := s.Name, c
			g.Go(func() error {
				if err := limiter.Wait(gctx); err != nil {
					results.Record(CaseResult{Suite: suiteName, Name: tc.Name, Tags: tc.Tags, Status: StatusSkipped})
					return nil
				}

				res := r.runCase(gctx, suiteName, tc)
				results.Record(res)

				if res.Status == StatusFailed && r.cfg.Suite.FailFast {
					return errFailFast
				}
				return nil
			})
		}
	}

	r.logger.Info("Run started",
		zap.String("run_id", runID),
		zap.Int("cases", total),
		zap.Int("parallelism", r.cfg.Suite.Parallelism),
	)

	err := g.Wait()
	if errors.Is(err, errFailFast) {
		err = nil
	}

	passed, failed, skipped := results.Counts()
	r.logger.Info("Run finished",
		zap.String("run_id", runID),
		zap.Int("passed", passed),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
		zap.Duration("elapsed", results.Elapsed()),
	)
	return results, err
}

// runCase executes one case in a fresh session under the case timeout.
func (r *Runner) runCase(ctx context.Context, suiteName string, c Case) CaseResult {
	caseCtx, cancel := context.WithTimeout(ctx, r.cfg.Suite.CaseTimeout)
	defer cancel()

	logger := r.logger.With(zap.String("suite", suiteName), zap.String("case", c.Name))
	start := time.Now()

	sess, err := r.sessions(caseCtx)
	if err != nil {
		logger.Error("Failed to create session", zap.Error(err))
		return CaseResult{
			Suite:   suiteName,
			Name:    c.Name,
			Tags:    c.Tags,
			Status:  StatusFailed,
			Err:     fmt.Errorf("session setup: %w", err),
			Elapsed: time.Since(start),
		}
	}
	defer sess.Close()

	fx := &Fixture{Session: sess, Config: r.cfg, Logger: logger}

	logger.Info("Case started")
	runErr := c.Run(caseCtx, fx)
	elapsed := time.Since(start)

	if runErr != nil {
		// A case torn down by run-level cancellation (fail-fast or a user
		// signal) did not fail on its own merits; report it as skipped so
		// the failure count only reflects real failures. The case's own
		// timeout still surfaces as context.DeadlineExceeded and fails.
		if errors.Is(runErr, context.Canceled) && ctx.Err() != nil {
			logger.Warn("Case aborted before completion", zap.Duration("elapsed", elapsed))
			return CaseResult{Suite: suiteName, Name: c.Name, Tags: c.Tags, Status: StatusSkipped, Err: runErr, Elapsed: elapsed}
		}

		logger.Error("Case failed", zap.Error(runErr), zap.Duration("elapsed", elapsed))
		if r.artifacts != nil && r.cfg.Artifacts.CaptureOnFail {
			// Capture on a fresh deadline; the case context may already be
			// expired, which is often the reason the case failed.
			capCtx, capCancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			r.artifacts.CaptureFailure(capCtx, suiteName+"_"+c.Name, sess)
			capCancel()
		}
		return CaseResult{Suite: suiteName, Name: c.Name, Tags: c.Tags, Status: StatusFailed, Err: runErr, Elapsed: elapsed}
	}

	logger.Info("Case passed", zap.Duration("elapsed", elapsed))
	return CaseResult{Suite: suiteName, Name: c.Name, Tags: c.Tags, Status: StatusPassed, Elapsed: elapsed}
}
