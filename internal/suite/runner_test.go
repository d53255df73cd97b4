// internal/suite/runner_test.go
package suite

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/hollis-qa/waypoint/internal/browser"
	"github.com/hollis-qa/waypoint/internal/config"
	"github.com/hollis-qa/waypoint/internal/wait"
)

// stubSession satisfies Session without a browser.
type stubSession struct {
	closed atomic.Bool
}

func (s *stubSession) Navigate(ctx context.Context, path string) error           { return nil }
func (s *stubSession) Click(ctx context.Context, selector string) error          { return nil }
func (s *stubSession) Type(ctx context.Context, selector, text string) error     { return nil }
func (s *stubSession) SelectOption(ctx context.Context, sel, val string) error   { return nil }
func (s *stubSession) Text(ctx context.Context, selector string) (string, error) { return "", nil }
func (s *stubSession) Eval(ctx context.Context, expr string, res interface{}) error {
	return nil
}
func (s *stubSession) ClickAction(selector string) wait.Action {
	return func(ctx context.Context) error { return nil }
}
func (s *stubSession) VisibleCondition(selector string) wait.Condition {
	return func(ctx context.Context) (bool, error) { return true, nil }
}
func (s *stubSession) HiddenCondition(selector string) wait.Condition {
	return func(ctx context.Context) (bool, error) { return true, nil }
}
func (s *stubSession) EnabledCondition(selector string) wait.Condition {
	return func(ctx context.Context) (bool, error) { return true, nil }
}
func (s *stubSession) Screenshot(ctx context.Context) ([]byte, error)         { return []byte{1}, nil }
func (s *stubSession) DOM(ctx context.Context) (string, error)                { return "<html/>", nil }
func (s *stubSession) ConsoleEntries() []browser.ConsoleEntry                 { return nil }
func (s *stubSession) Cookies(ctx context.Context) ([]*network.Cookie, error) { return nil, nil }
func (s *stubSession) Close()                                                 { s.closed.Store(true) }

func stubFactory() SessionFactory {
	return func(ctx context.Context) (Session, error) { return &stubSession{}, nil }
}

// recordingSink counts failure captures.
type recordingSink struct {
	mu    sync.Mutex
	cases []string
}

func (r *recordingSink) CaptureFailure(ctx context.Context, caseName string, s browser.Capturable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cases = append(r.cases, caseName)
}

func runnerConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Suite.Parallelism = 4
	cfg.Suite.StartRate = 1000
	cfg.Suite.CaseTimeout = 5 * time.Second
	return cfg
}

func passingCase(name string, tags ...string) Case {
	return Case{Name: name, Tags: tags, Run: func(ctx context.Context, fx *Fixture) error { return nil }}
}

func failingCase(name string, err error) Case {
	return Case{Name: name, Run: func(ctx context.Context, fx *Fixture) error { return err }}
}

func TestRunnerRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	t.Run("should aggregate passed and failed cases", func(t *testing.T) {
		cfg := runnerConfig()
		boom := errors.New("assertion failed")
		suites := []Suite{{
			Name:  "demo",
			Cases: []Case{passingCase("a"), failingCase("b", boom), passingCase("c")},
		}}

		r := NewRunner(cfg, zaptest.NewLogger(t), stubFactory(), nil)
		results, err := r.Run(ctx, "run-1", suites)
		require.NoError(t, err)

		passed, failed, skipped := results.Counts()
		assert.Equal(t, 2, passed)
		assert.Equal(t, 1, failed)
		assert.Zero(t, skipped)
		assert.False(t, results.OK())

		failures := results.Failures()
		require.Len(t, failures, 1)
		assert.Equal(t, "b", failures[0].Name)
		assert.ErrorIs(t, failures[0].Err, boom)
	})

	t.Run("should skip cases excluded by the tag filter", func(t *testing.T) {
		cfg := runnerConfig()
		cfg.Run.Tags = []string{"smoke"}
		suites := []Suite{{
			Name:  "demo",
			Cases: []Case{passingCase("tagged", "smoke"), passingCase("untagged", "slow")},
		}}

		r := NewRunner(cfg, zaptest.NewLogger(t), stubFactory(), nil)
		results, err := r.Run(ctx, "run-2", suites)
		require.NoError(t, err)

		passed, _, skipped := results.Counts()
		assert.Equal(t, 1, passed)
		assert.Equal(t, 1, skipped)
	})

	t.Run("should respect the parallelism bound", func(t *testing.T) {
		cfg := runnerConfig()
		cfg.Suite.Parallelism = 2

		var active, peak atomic.Int32
		slow := func(name string) Case {
			return Case{Name: name, Run: func(ctx context.Context, fx *Fixture) error {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				active.Add(-1)
				return nil
			}}
		}
		suites := []Suite{{Name: "demo", Cases: []Case{slow("a"), slow("b"), slow("c"), slow("d")}}}

		r := NewRunner(cfg, zaptest.NewLogger(t), stubFactory(), nil)
		_, err := r.Run(ctx, "run-3", suites)
		require.NoError(t, err)
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("should capture artifacts for failed cases only", func(t *testing.T) {
		cfg := runnerConfig()
		sink := &recordingSink{}
		suites := []Suite{{
			Name:  "demo",
			Cases: []Case{passingCase("ok"), failingCase("broken", errors.New("boom"))},
		}}

		r := NewRunner(cfg, zaptest.NewLogger(t), stubFactory(), sink)
		_, err := r.Run(ctx, "run-4", suites)
		require.NoError(t, err)

		sink.mu.Lock()
		defer sink.mu.Unlock()
		assert.Equal(t, []string{"demo_broken"}, sink.cases)
	})

	t.Run("should stop early when configured to fail fast", func(t *testing.T) {
		cfg := runnerConfig()
		cfg.Suite.Parallelism = 1
		cfg.Suite.FailFast = true

		executed := atomic.Int32{}
		counted := func(name string, err error) Case {
			return Case{Name: name, Run: func(ctx context.Context, fx *Fixture) error {
				executed.Add(1)
				return err
			}}
		}
		suites := []Suite{{Name: "demo", Cases: []Case{
			counted("first", errors.New("boom")),
			counted("second", nil),
			counted("third", nil),
		}}}

		r := NewRunner(cfg, zaptest.NewLogger(t), stubFactory(), nil)
		results, err := r.Run(ctx, "run-5", suites)
		require.NoError(t, err)
		assert.False(t, results.OK())
		assert.Less(t, executed.Load(), int32(3), "later cases must not all run after the first failure")
	})

	t.Run("should record cases aborted by fail fast as skipped, not failed", func(t *testing.T) {
		cfg := runnerConfig()
		cfg.Suite.Parallelism = 2
		cfg.Suite.FailFast = true

		started := make(chan struct{})
		suites := []Suite{{Name: "demo", Cases: []Case{
			{Name: "in-flight", Run: func(ctx context.Context, fx *Fixture) error {
				close(started)
				<-ctx.Done()
				return ctx.Err()
			}},
			{Name: "doomed", Run: func(ctx context.Context, fx *Fixture) error {
				<-started
				return errors.New("boom")
			}},
		}}}

		r := NewRunner(cfg, zaptest.NewLogger(t), stubFactory(), nil)
		results, err := r.Run(ctx, "run-7", suites)
		require.NoError(t, err)

		_, failed, skipped := results.Counts()
		assert.Equal(t, 1, failed, "only the triggering case is a real failure")
		assert.Equal(t, 1, skipped)

		failures := results.Failures()
		require.Len(t, failures, 1)
		assert.Equal(t, "doomed", failures[0].Name)
	})

	t.Run("should record a failure when session creation fails", func(t *testing.T) {
		cfg := runnerConfig()
		factory := func(ctx context.Context) (Session, error) {
			return nil, errors.New("browser is gone")
		}
		suites := []Suite{{Name: "demo", Cases: []Case{passingCase("a")}}}

		r := NewRunner(cfg, zaptest.NewLogger(t), factory, nil)
		results, err := r.Run(ctx, "run-6", suites)
		require.NoError(t, err)
		failures := results.Failures()
		require.Len(t, failures, 1)
		assert.Contains(t, failures[0].Err.Error(), "session setup")
	})
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(Suite{Name: "login"}, Suite{Name: "order"})

	t.Run("should list names in sorted order", func(t *testing.T) {
		assert.Equal(t, []string{"login", "order"}, reg.Names())
	})

	t.Run("should return all suites for an empty selection", func(t *testing.T) {
		suites, err := reg.Select(nil)
		require.NoError(t, err)
		assert.Len(t, suites, 2)
	})

	t.Run("should reject unknown suite names", func(t *testing.T) {
		_, err := reg.Select([]string{"nope"})
		assert.Error(t, err)
	})
}

func TestMatchesTags(t *testing.T) {
	assert.True(t, matchesTags([]string{"smoke"}, nil))
	assert.True(t, matchesTags([]string{"smoke", "auth"}, []string{"auth"}))
	assert.False(t, matchesTags([]string{"slow"}, []string{"smoke"}))
	assert.False(t, matchesTags(nil, []string{"smoke"}))
}
