// -- cmd/run.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hollis-qa/waypoint/internal/browser"
	"github.com/hollis-qa/waypoint/internal/config"
	"github.com/hollis-qa/waypoint/internal/observability"
	"github.com/hollis-qa/waypoint/internal/reporting"
	"github.com/hollis-qa/waypoint/internal/store"
	"github.com/hollis-qa/waypoint/internal/suite"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [suites...]",
		Short: "Runs the selected test suites against the configured target",
		Args:  cobra.ArbitraryArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their Viper keys so command-line flags correctly
			// override values from the config file and environment.
			if err := viper.BindPFlag("suite.parallelism", cmd.Flags().Lookup("parallelism")); err != nil {
				return err
			}
			if err := viper.BindPFlag("suite.fail_fast", cmd.Flags().Lookup("fail-fast")); err != nil {
				return err
			}
			if err := viper.BindPFlag("target.base_url", cmd.Flags().Lookup("target")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from Execute (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// 1. Configuration Finalization. Re-resolve the config now that
			// flags are bound, so overrides apply with the right precedence.
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to finalize config with flag overrides: %w", err)
			}
			cfg.Run.Suites = args
			cfg.Run.Tags = viper.GetStringSlice("tags")
			cfg.Run.Output = viper.GetString("output")
			cfg.Run.Format = viper.GetString("format")

			if cfg.Target.BaseURL == "" {
				return fmt.Errorf("no target configured: set target.base_url or pass --target")
			}

			runID := uuid.New().String()
			logger.Info("Starting run",
				zap.String("run_id", runID),
				zap.String("target", cfg.Target.BaseURL),
				zap.Strings("suites", cfg.Run.Suites),
				zap.Strings("tags", cfg.Run.Tags),
				zap.Int("parallelism", cfg.Suite.Parallelism),
			)

			// 2. Initialize Core Components
			components, err := initializeRunComponents(ctx, cfg, runID, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return fmt.Errorf("failed to initialize run components: %w", err)
			}
			defer components.Shutdown()

			// 3. Select suites and execute
			suites, err := components.Registry.Select(cfg.Run.Suites)
			if err != nil {
				return err
			}

			results, err := components.Runner.Run(ctx, runID, suites)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Run aborted gracefully", zap.String("run_id", runID))
					return fmt.Errorf("run aborted by user signal")
				}
				return fmt.Errorf("run failed: %w", err)
			}

			// 4. Reporting and persistence
			report := reporting.BuildReport(results, cfg.Target.BaseURL, Version)

			if components.Store != nil {
				if err := components.Store.SaveRun(ctx, report); err != nil {
					logger.Error("Failed to persist run history", zap.Error(err))
				}
			}
			if cfg.Run.Output != "" {
				if err := writeReport(report, cfg.Run.Format, cfg.Run.Output, logger); err != nil {
					return err
				}
			}

			// 5. Final Output
			passed, failed, skipped := results.Counts()
			fmt.Printf("\nRun Complete. Run ID: %s (passed: %d, failed: %d, skipped: %d)\n", runID, passed, failed, skipped)
			if cfg.Run.Output == "" && components.Store != nil {
				fmt.Printf("To regenerate a report, run: waypoint report --run-id %s\n", runID)
			}

			if failed > 0 {
				return fmt.Errorf("%d case(s) failed", failed)
			}
			return nil
		},
	}

	// Reporting flags
	runCmd.Flags().StringP("output", "o", "", "Output file path for the report. If unset, no report file is generated.")
	runCmd.Flags().StringP("format", "f", "json", "Format for the output report ('json' or 'junit').")

	// Run configuration override flags.
	runCmd.Flags().StringP("target", "t", "", "Base URL of the application under test. (Overrides config/env)")
	runCmd.Flags().StringSlice("tags", nil, "Only run cases carrying at least one of the given tags.")
	runCmd.Flags().IntP("parallelism", "j", 0, "Number of concurrent browser sessions. (Overrides config/env)")
	runCmd.Flags().Bool("fail-fast", false, "Stop scheduling new cases after the first failure. (Overrides config/env)")

	return runCmd
}

// runComponents holds initialized services.
type runComponents struct {
	BrowserManager *browser.Manager
	ArtifactSink   *browser.ArtifactSink
	Registry       *suite.Registry
	Runner         *suite.Runner
	Store          *store.Store
	DBPool         *pgxpool.Pool
}

// Shutdown gracefully closes all components.
func (rc *runComponents) Shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if rc.BrowserManager != nil {
		if err := rc.BrowserManager.Shutdown(shutdownCtx); err != nil {
			observability.GetLogger().Warn("Error during browser manager shutdown", zap.Error(err))
		}
	}
	if rc.DBPool != nil {
		rc.DBPool.Close()
	}
}

// initializeRunComponents handles dependency injection.
func initializeRunComponents(ctx context.Context, cfg *config.Config, runID string, logger *zap.Logger) (*runComponents, error) {
	components := &runComponents{}

	// 1. Run history store (optional)
	if cfg.History.Enabled {
		dbPool, err := pgxpool.New(ctx, cfg.History.DatabaseURL)
		if err != nil {
			return components, fmt.Errorf("failed to connect to database: %w", err)
		}
		components.DBPool = dbPool

		dbStore, err := store.New(ctx, dbPool, logger)
		if err != nil {
			return components, fmt.Errorf("failed to initialize history store: %w", err)
		}
		if err := dbStore.EnsureSchema(ctx); err != nil {
			return components, err
		}
		components.Store = dbStore
	}

	// 2. Browser Manager
	browserManager, err := browser.NewManager(ctx, logger, cfg)
	if err != nil {
		return components, fmt.Errorf("failed to initialize browser manager: %w", err)
	}
	components.BrowserManager = browserManager

	// 3. Failure artifacts
	if cfg.Artifacts.CaptureOnFail {
		sink, err := browser.NewArtifactSink(cfg.Artifacts.Dir, runID, logger)
		if err != nil {
			return components, fmt.Errorf("failed to initialize artifact sink: %w", err)
		}
		components.ArtifactSink = sink
	}

	// 4. Suites and runner
	components.Registry = suite.NewRegistry(suite.Builtins()...)

	sessions := func(ctx context.Context) (suite.Session, error) {
		return browserManager.NewSession(ctx)
	}
	var artifacts suite.ArtifactRecorder
	if components.ArtifactSink != nil {
		artifacts = components.ArtifactSink
	}
	components.Runner = suite.NewRunner(cfg, logger, sessions, artifacts)

	return components, nil
}

// writeReport renders the report to the requested output.
func writeReport(report *reporting.RunReport, format, outputPath string, logger *zap.Logger) error {
	logger.Info("Generating run report...", zap.String("format", format), zap.String("output_path", outputPath))

	reporter, err := reporting.New(format, outputPath, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	defer func() {
		if err := reporter.Close(); err != nil {
			logger.Error("Failed to close reporter", zap.Error(err))
		}
	}()

	if err := reporter.Write(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
