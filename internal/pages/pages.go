// Package pages contains the page objects for the target application. Each
// page wraps the raw browser session behind intent-level operations and owns
// the convergence policy for its own asynchronous UI.
package pages

import (
	"context"

	"go.uber.org/zap"

	"github.com/hollis-qa/waypoint/internal/config"
	"github.com/hollis-qa/waypoint/internal/wait"
)

// Browser is the subset of the session surface the page objects need. The
// concrete implementation is internal/browser.Session.
type Browser interface {
	Navigate(ctx context.Context, path string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	SelectOption(ctx context.Context, selector, value string) error
	Text(ctx context.Context, selector string) (string, error)
	Eval(ctx context.Context, expression string, res interface{}) error

	ClickAction(selector string) wait.Action
	VisibleCondition(selector string) wait.Condition
	HiddenCondition(selector string) wait.Condition
	EnabledCondition(selector string) wait.Condition
}

// convergeOpts translates the configured wait policy into wait options.
// Call sites append their own overrides after these.
func convergeOpts(cfg *config.Config, logger *zap.Logger, extra ...wait.Option) []wait.Option {
	opts := []wait.Option{
		wait.WithMaxAttempts(cfg.Wait.MaxAttempts),
		wait.WithAttemptTimeout(cfg.Wait.AttemptTimeout),
		wait.WithPollInterval(cfg.Wait.PollInterval),
		wait.WithLogger(logger),
	}
	return append(opts, extra...)
}
