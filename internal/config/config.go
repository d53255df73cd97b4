// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Network   NetworkConfig   `mapstructure:"network" yaml:"network"`
	Target    TargetConfig    `mapstructure:"target" yaml:"target"`
	Wait      WaitConfig      `mapstructure:"wait" yaml:"wait"`
	Suite     SuiteConfig     `mapstructure:"suite" yaml:"suite"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`

	// Run gets its marching orders from CLI flags, not the config file.
	Run RunConfig `mapstructure:"-" yaml:"-"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool     `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	WindowWidth     int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int      `mapstructure:"window_height" yaml:"window_height"`
	Args            []string `mapstructure:"args" yaml:"args"`
}

// NetworkConfig tunes page-load behavior.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// TargetConfig identifies the application under test.
type TargetConfig struct {
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`
}

// WaitConfig carries the default bounds for the condition-convergence waits
// used by the page objects. Individual call sites may override these.
type WaitConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" yaml:"attempt_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Stability      time.Duration `mapstructure:"stability" yaml:"stability"`
}

// SuiteConfig controls suite execution.
type SuiteConfig struct {
	CaseTimeout       time.Duration `mapstructure:"case_timeout" yaml:"case_timeout"`
	Parallelism       int           `mapstructure:"parallelism" yaml:"parallelism"`
	StartRate         float64       `mapstructure:"start_rate" yaml:"start_rate"`
	FailFast          bool          `mapstructure:"fail_fast" yaml:"fail_fast"`
	PreferredShipping string        `mapstructure:"preferred_shipping" yaml:"preferred_shipping"`
}

// HistoryConfig enables persisting run results to PostgreSQL.
type HistoryConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DatabaseURL string `mapstructure:"database_url" yaml:"-"`
}

// ArtifactsConfig controls failure artifact capture.
type ArtifactsConfig struct {
	Dir           string `mapstructure:"dir" yaml:"dir"`
	CaptureOnFail bool   `mapstructure:"capture_on_fail" yaml:"capture_on_fail"`
}

// RunConfig holds settings populated from CLI flags for a specific run.
type RunConfig struct {
	Suites []string
	Tags   []string
	Output string
	Format string
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "waypoint")
	v.SetDefault("logger.log_file", "waypoint.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)

	// -- Network --
	v.SetDefault("network.navigation_timeout", "60s")
	v.SetDefault("network.post_load_wait", "500ms")

	// -- Wait --
	v.SetDefault("wait.max_attempts", 3)
	v.SetDefault("wait.attempt_timeout", "2s")
	v.SetDefault("wait.poll_interval", "100ms")
	v.SetDefault("wait.stability", "0s")

	// -- Suite --
	v.SetDefault("suite.case_timeout", "3m")
	v.SetDefault("suite.parallelism", 4)
	v.SetDefault("suite.start_rate", 2.0)
	v.SetDefault("suite.fail_fast", false)

	// -- History --
	v.SetDefault("history.enabled", false)

	// -- Artifacts --
	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.capture_on_fail", true)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("target.password", "WAYPOINT_TARGET_PASSWORD")
	v.BindEnv("history.database_url", "WAYPOINT_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the secrets if Unmarshal didn't pick them up.
	if cfg.Target.Password == "" {
		cfg.Target.Password = os.Getenv("WAYPOINT_TARGET_PASSWORD")
	}
	if cfg.History.Enabled && cfg.History.DatabaseURL == "" {
		cfg.History.DatabaseURL = os.Getenv("WAYPOINT_DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Suite.Parallelism <= 0 {
		return fmt.Errorf("suite.parallelism must be a positive integer")
	}
	if c.Suite.StartRate <= 0 {
		return fmt.Errorf("suite.start_rate must be positive")
	}
	if c.Wait.MaxAttempts <= 0 {
		return fmt.Errorf("wait.max_attempts must be a positive integer")
	}
	if c.Wait.AttemptTimeout <= 0 {
		return fmt.Errorf("wait.attempt_timeout must be a positive duration")
	}
	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be a positive duration")
	}
	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the history configuration.
func (h *HistoryConfig) Validate() error {
	if !h.Enabled {
		return nil
	}
	if h.DatabaseURL == "" {
		return fmt.Errorf("database_url is required when history is enabled. Ensure WAYPOINT_DATABASE_URL is set")
	}
	return nil
}
