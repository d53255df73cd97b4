// internal/pages/pages_test.go
package pages

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hollis-qa/waypoint/internal/config"
	"github.com/hollis-qa/waypoint/internal/wait"
)

// fakeBrowser is a scripted stand-in for the real session. State is guarded
// by a mutex because conditions are polled while hooks mutate.
type fakeBrowser struct {
	mu        sync.Mutex
	navigated []string
	clicks    map[string]int
	typed     map[string]string
	selected  map[string]string
	texts     map[string]string
	visible   map[string]bool
	enabled   map[string]bool
	evalFn    func(expression string, res interface{}) error
	onClick   func(f *fakeBrowser, selector string)
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		clicks:   map[string]int{},
		typed:    map[string]string{},
		selected: map[string]string{},
		texts:    map[string]string{},
		visible:  map[string]bool{},
		enabled:  map[string]bool{},
	}
}

func (f *fakeBrowser) Navigate(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, path)
	return nil
}

func (f *fakeBrowser) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	f.clicks[selector]++
	hook := f.onClick
	f.mu.Unlock()
	if hook != nil {
		hook(f, selector)
	}
	return nil
}

func (f *fakeBrowser) Type(ctx context.Context, selector, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed[selector] = text
	return nil
}

func (f *fakeBrowser) SelectOption(ctx context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected[selector] = value
	return nil
}

func (f *fakeBrowser) Text(ctx context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if text, ok := f.texts[selector]; ok {
		return text, nil
	}
	return "", fmt.Errorf("no element matches %q", selector)
}

func (f *fakeBrowser) Eval(ctx context.Context, expression string, res interface{}) error {
	f.mu.Lock()
	fn := f.evalFn
	f.mu.Unlock()
	if fn == nil {
		return fmt.Errorf("unexpected evaluation: %s", expression)
	}
	return fn(expression, res)
}

func (f *fakeBrowser) ClickAction(selector string) wait.Action {
	return func(ctx context.Context) error {
		return f.Click(ctx, selector)
	}
}

func (f *fakeBrowser) VisibleCondition(selector string) wait.Condition {
	return func(ctx context.Context) (bool, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.visible[selector], nil
	}
}

func (f *fakeBrowser) HiddenCondition(selector string) wait.Condition {
	return func(ctx context.Context) (bool, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return !f.visible[selector], nil
	}
}

func (f *fakeBrowser) EnabledCondition(selector string) wait.Condition {
	return func(ctx context.Context) (bool, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.enabled[selector], nil
	}
}

func (f *fakeBrowser) setVisible(selector string, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible[selector] = v
}

func (f *fakeBrowser) clickCount(selector string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clicks[selector]
}

// fastConfig keeps the convergence loops tight for tests.
func fastConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Wait.MaxAttempts = 3
	cfg.Wait.AttemptTimeout = 40 * time.Millisecond
	cfg.Wait.PollInterval = 5 * time.Millisecond
	cfg.Wait.Stability = 0
	return cfg
}
