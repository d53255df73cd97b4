// internal/pages/login.go
package pages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hollis-qa/waypoint/internal/config"
	"github.com/hollis-qa/waypoint/internal/wait"
)

const (
	loginPath        = "login"
	usernameField    = "#username"
	passwordField    = "#password"
	loginSubmit      = "button[type='submit']"
	userMenuMarker   = "[data-testid='user-menu']"
	loginErrorBanner = "[data-testid='login-error']"
)

// LoginPage drives the credential form and converges on the post-login state.
type LoginPage struct {
	b      Browser
	cfg    *config.Config
	logger *zap.Logger
}

func NewLoginPage(b Browser, cfg *config.Config, logger *zap.Logger) *LoginPage {
	return &LoginPage{b: b, cfg: cfg, logger: logger.Named("login_page")}
}

// Login navigates to the login form, submits the configured credentials and
// waits until the authenticated user menu is rendered. The submit click is
// retried when the post-login marker does not appear, which absorbs the
// occasional dropped first click on the slow-hydrating form.
func (p *LoginPage) Login(ctx context.Context) error {
	if err := p.b.Navigate(ctx, loginPath); err != nil {
		return err
	}
	if err := p.b.Type(ctx, usernameField, p.cfg.Target.Username); err != nil {
		return fmt.Errorf("failed to enter username: %w", err)
	}
	if err := p.b.Type(ctx, passwordField, p.cfg.Target.Password); err != nil {
		return fmt.Errorf("failed to enter password: %w", err)
	}

	out, err := wait.Converge(ctx,
		p.b.ClickAction(loginSubmit),
		p.b.VisibleCondition(userMenuMarker),
		convergeOpts(p.cfg, p.logger)...,
	)
	if err != nil {
		if msg, textErr := p.b.Text(ctx, loginErrorBanner); textErr == nil && msg != "" {
			return fmt.Errorf("login rejected: %s: %w", msg, err)
		}
		return fmt.Errorf("login did not complete: %w", err)
	}

	p.logger.Info("Logged in",
		zap.Int("submit_attempts", out.Attempts),
		zap.Duration("elapsed", out.Elapsed),
	)
	return nil
}
