package wait

import (
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxAttempts    = 3
	defaultAttemptTimeout = 2 * time.Second
	defaultPollInterval   = 100 * time.Millisecond
)

// options holds the resolved configuration for a single wait invocation.
type options struct {
	maxAttempts    int
	attemptTimeout time.Duration
	totalTimeout   time.Duration
	pollInterval   time.Duration
	stability      time.Duration
	logger         *zap.Logger
}

// Option configures a wait invocation.
type Option func(*options)

// WithMaxAttempts bounds how many times the action is invoked. Values below 1
// are clamped to 1.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.maxAttempts = n
	}
}

// WithAttemptTimeout bounds how long the condition is polled after each
// invocation of the action before the next attempt begins.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *options) { o.attemptTimeout = d }
}

// WithTotalTimeout sets an upper bound on wall-clock time across all attempts.
// Zero means no total bound beyond maxAttempts * attemptTimeout.
func WithTotalTimeout(d time.Duration) Option {
	return func(o *options) { o.totalTimeout = d }
}

// WithPollInterval sets the delay between consecutive condition probes.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithStability requires the condition to still hold after the given settle
// window before the wait is considered converged. A condition that flips back
// within the window is recorded as a flaky observation and polling continues.
func WithStability(d time.Duration) Option {
	return func(o *options) { o.stability = d }
}

// WithLogger attaches a logger for per-attempt diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		maxAttempts:    defaultMaxAttempts,
		attemptTimeout: defaultAttemptTimeout,
		pollInterval:   defaultPollInterval,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
