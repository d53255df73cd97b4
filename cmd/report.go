// File: cmd/report.go
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/hollis-qa/waypoint/internal/config"
	"github.com/hollis-qa/waypoint/internal/observability"
	"github.com/hollis-qa/waypoint/internal/reporting"
	"github.com/hollis-qa/waypoint/internal/store"
)

// runFetcher loads a persisted run. The abstraction exists so tests can
// inject a stub instead of a live database connection.
type runFetcher interface {
	FetchRun(ctx context.Context, runID string) (*reporting.RunReport, error)
}

// storeProvider creates the production runFetcher backed by PostgreSQL and
// returns a cleanup function releasing the pool.
type storeProvider func(ctx context.Context, cfg *config.Config) (runFetcher, func(), error)

func defaultStoreProvider(ctx context.Context, cfg *config.Config) (runFetcher, func(), error) {
	logger := observability.GetLogger()
	if cfg.History.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (WAYPOINT_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.History.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize history store: %w", err)
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed (via report cleanup).")
	}
	return s, cleanup, nil
}

// newReportCmd creates and configures the `report` command.
func newReportCmd() *cobra.Command {
	return newReportCmdWithProvider(defaultStoreProvider)
}

func newReportCmdWithProvider(provider storeProvider) *cobra.Command {
	var runID string
	var outputPath string
	var format string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Regenerates a report for a previously persisted run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			fetcher, cleanup, err := provider(ctx, appConfig)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := fetcher.FetchRun(ctx, runID)
			if err != nil {
				return fmt.Errorf("failed to load run %s: %w", runID, err)
			}

			return writeReport(report, format, outputPath, logger)
		},
	}

	reportCmd.Flags().StringVar(&runID, "run-id", "", "ID of the run to report on (required)")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path for the report. Defaults to stdout.")
	reportCmd.Flags().StringVarP(&format, "format", "f", "json", "Format for the output report ('json' or 'junit').")
	_ = reportCmd.MarkFlagRequired("run-id")

	return reportCmd
}
