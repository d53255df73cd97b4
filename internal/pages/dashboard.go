// internal/pages/dashboard.go
package pages

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hollis-qa/waypoint/internal/config"
	"github.com/hollis-qa/waypoint/internal/wait"
)

const (
	dashboardPath       = "dashboard"
	processingIndicator = "[data-testid='processing-indicator']"
	ordersTableRows     = "#orders-table tbody tr"

	// How long to watch for the processing indicator before concluding the
	// data was served from cache and it will never appear.
	indicatorAppearWindow = 2 * time.Second
	indicatorClearTimeout = 30 * time.Second
)

// DashboardPage wraps the post-login dashboard. Its order table loads over
// AJAX behind a processing indicator that is skipped entirely when the data
// is cached, so the page must not insist on seeing the indicator.
type DashboardPage struct {
	b      Browser
	cfg    *config.Config
	logger *zap.Logger
}

func NewDashboardPage(b Browser, cfg *config.Config, logger *zap.Logger) *DashboardPage {
	return &DashboardPage{b: b, cfg: cfg, logger: logger.Named("dashboard_page")}
}

// Open navigates to the dashboard and waits out the processing indicator. A
// run where the indicator never shows up is as valid as one where it appears
// and clears; only an indicator that sticks is a failure.
func (p *DashboardPage) Open(ctx context.Context) error {
	if err := p.b.Navigate(ctx, dashboardPath); err != nil {
		return err
	}

	result, err := wait.AwaitTransient(ctx,
		p.b.VisibleCondition(processingIndicator),
		indicatorAppearWindow,
		indicatorClearTimeout,
		wait.WithPollInterval(p.cfg.Wait.PollInterval),
		wait.WithLogger(p.logger),
	)
	if err != nil {
		return fmt.Errorf("dashboard data never finished loading: %w", err)
	}
	p.logger.Debug("Dashboard settled", zap.String("indicator", result.String()))

	// The table body renders after the indicator clears.
	if _, err := wait.Until(ctx,
		p.b.VisibleCondition(ordersTableRows),
		convergeOpts(p.cfg, p.logger)...,
	); err != nil {
		return fmt.Errorf("order table did not populate: %w", err)
	}
	return nil
}

// RowCount returns the number of rows currently in the order table.
func (p *DashboardPage) RowCount(ctx context.Context) (int, error) {
	var n int
	expr := fmt.Sprintf(`document.querySelectorAll(%q).length`, ordersTableRows)
	if err := p.b.Eval(ctx, expr, &n); err != nil {
		return 0, fmt.Errorf("failed to count order rows: %w", err)
	}
	return n, nil
}

// RowText returns the text content of the i-th order row (zero-based).
func (p *DashboardPage) RowText(ctx context.Context, i int) (string, error) {
	selector := fmt.Sprintf("%s:nth-child(%d)", ordersTableRows, i+1)
	return p.b.Text(ctx, selector)
}
