// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hollis-qa/waypoint/internal/config"
	"github.com/hollis-qa/waypoint/internal/wait"
)

// ConsoleEntry is a single message captured from the browser console.
type ConsoleEntry struct {
	Level string `json:"level"`
	Text  string `json:"text"`
	URL   string `json:"url,omitempty"`
}

// Session is an isolated browser tab bound to one test case. It provides the
// low-level interactions that page objects compose, plus closures adapting
// those interactions to the wait package.
type Session struct {
	ID     string
	logger *zap.Logger
	cfg    *config.Config

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	console []ConsoleEntry
	closed  bool
	onClose func()
}

func newSession(parent, allocatorCtx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	taskCtx, cancel := chromedp.NewContext(allocatorCtx)

	// Propagate cancellation of the caller's context to the tab.
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-taskCtx.Done():
		}
	}()

	id := uuid.NewString()
	s := &Session{
		ID:     id,
		logger: logger.Named("session").With(zap.String("session_id", id)),
		cfg:    cfg,
		ctx:    taskCtx,
		cancel: cancel,
	}

	// Enable console capture before any navigation so early messages are kept.
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		if entry, ok := ev.(*log.EventEntryAdded); ok {
			s.mu.Lock()
			s.console = append(s.console, ConsoleEntry{
				Level: string(entry.Entry.Level),
				Text:  entry.Entry.Text,
				URL:   entry.Entry.URL,
			})
			s.mu.Unlock()
		}
	})
	if err := chromedp.Run(taskCtx, log.Enable()); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to enable console capture: %w", err)
	}
	if cfg.Browser.DisableCache {
		if err := chromedp.Run(taskCtx, network.SetCacheDisabled(true)); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to disable browser cache: %w", err)
		}
	}
	return s, nil
}

// Context returns the tab's chromedp context for callers that need to run
// custom actions.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Navigate loads a path relative to the configured base URL, waits for the
// document body, and then applies the configured post-load settle delay.
func (s *Session) Navigate(ctx context.Context, path string) error {
	target, err := s.resolveURL(path)
	if err != nil {
		return err
	}

	navCtx, cancel := context.WithTimeout(s.ctx, s.cfg.Network.NavigationTimeout)
	defer cancel()
	navCtx = withParentCancel(navCtx, ctx)

	s.logger.Debug("Navigating", zap.String("url", target))
	err = chromedp.Run(navCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.Network.PostLoadWait),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", target, err)
	}
	return nil
}

func (s *Session) resolveURL(path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	base, err := url.Parse(s.cfg.Target.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", s.cfg.Target.BaseURL, err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Click clicks the first element matching the CSS selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// Type clears the matched input and types the given text into it.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	return s.run(ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

// SelectOption sets a <select> element to the option with the given value.
func (s *Session) SelectOption(ctx context.Context, selector, value string) error {
	return s.run(ctx, chromedp.SetValue(selector, value, chromedp.ByQuery))
}

// Text returns the trimmed inner text of the first matching element.
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	var out string
	if err := s.run(ctx, chromedp.Text(selector, &out, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Eval evaluates a JavaScript expression in the page and unmarshals the
// result into res.
func (s *Session) Eval(ctx context.Context, expression string, res interface{}) error {
	return s.run(ctx, chromedp.Evaluate(expression, res))
}

// ClickAction adapts a click on the selector into a retryable wait action.
func (s *Session) ClickAction(selector string) wait.Action {
	return func(ctx context.Context) error {
		return s.Click(ctx, selector)
	}
}

// VisibleCondition reports whether an element matching the selector is
// present and rendered. Missing elements are a false observation, not an
// error, so callers can poll through page transitions.
func (s *Session) VisibleCondition(selector string) wait.Condition {
	expr := fmt.Sprintf(`(function() {
		const el = document.querySelector(%q);
		return el !== null && el.offsetParent !== null;
	})()`, selector)
	return s.boolCondition(expr)
}

// HiddenCondition reports whether no visible element matches the selector.
func (s *Session) HiddenCondition(selector string) wait.Condition {
	expr := fmt.Sprintf(`(function() {
		const el = document.querySelector(%q);
		return el === null || el.offsetParent === null;
	})()`, selector)
	return s.boolCondition(expr)
}

// EnabledCondition reports whether the matched element exists and is not
// disabled.
func (s *Session) EnabledCondition(selector string) wait.Condition {
	expr := fmt.Sprintf(`(function() {
		const el = document.querySelector(%q);
		return el !== null && !el.disabled;
	})()`, selector)
	return s.boolCondition(expr)
}

func (s *Session) boolCondition(expr string) wait.Condition {
	return func(ctx context.Context) (bool, error) {
		var ok bool
		if err := s.Eval(ctx, expr, &ok); err != nil {
			return false, err
		}
		return ok, nil
	}
}

// Screenshot captures the full page as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("screenshot capture failed: %w", err)
	}
	return buf, nil
}

// DOM returns the serialized outer HTML of the current document.
func (s *Session) DOM(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("DOM capture failed: %w", err)
	}
	return html, nil
}

// Cookies returns all cookies visible to the current page.
func (s *Session) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(cctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(cctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("cookie capture failed: %w", err)
	}
	return cookies, nil
}

// ConsoleEntries returns a snapshot of the console messages captured so far.
func (s *Session) ConsoleEntries() []ConsoleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConsoleEntry, len(s.console))
	copy(out, s.console)
	return out
}

// Close tears down the tab. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	if s.onClose != nil {
		s.onClose()
	}
}

// run executes chromedp actions on the tab, honoring cancellation of the
// caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := withParentCancel(s.ctx, ctx)
	return chromedp.Run(runCtx, actions...)
}

// withParentCancel derives a context from base that is also canceled when
// parent is done. chromedp actions must run on the tab's context chain, so
// the caller's deadline cannot be passed through directly.
func withParentCancel(base, parent context.Context) context.Context {
	if parent == nil || parent == base {
		return base
	}
	var ctx context.Context
	var cancel context.CancelFunc
	if deadline, ok := parent.Deadline(); ok {
		ctx, cancel = context.WithDeadline(base, deadline)
	} else {
		ctx, cancel = context.WithCancel(base)
	}
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
