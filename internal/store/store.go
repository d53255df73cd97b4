// Package store persists run history to PostgreSQL so reports can be
// regenerated after the fact.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/hollis-qa/waypoint/internal/reporting"
)

// DB is the pool surface the store needs. Satisfied by *pgxpool.Pool and by
// pgxmock in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// ErrRunNotFound is returned when no run with the requested ID exists.
var ErrRunNotFound = errors.New("run not found")

// Store provides the PostgreSQL-backed run history.
type Store struct {
	db  DB
	log *zap.Logger
}

// New creates a store instance and verifies the connection.
func New(ctx context.Context, db DB, logger *zap.Logger) (*Store, error) {
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database is unreachable: %w", err)
	}
	return &Store{
		db:  db,
		log: logger.Named("store"),
	}, nil
}

// EnsureSchema creates the history tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	target     TEXT NOT NULL,
	version    TEXT NOT NULL,
	passed     INT NOT NULL,
	failed     INT NOT NULL,
	skipped    INT NOT NULL,
	elapsed_ms BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS case_results (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	suite      TEXT NOT NULL,
	name       TEXT NOT NULL,
	tags       TEXT[] NOT NULL DEFAULT '{}',
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	elapsed_ms BIGINT NOT NULL
);`
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// SaveRun persists one run and its case results in a single transaction.
func (s *Store) SaveRun(ctx context.Context, report *reporting.RunReport) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, started_at, target, version, passed, failed, skipped, elapsed_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.RunID, report.StartedAt, report.Target, report.Version,
		report.Passed, report.Failed, report.Skipped, toMillis(report.Elapsed),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}

	if len(report.Cases) > 0 {
		if err := s.persistCases(ctx, tx, report.RunID, report.Cases); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", report.RunID, err)
	}
	s.log.Info("Run persisted", zap.String("run_id", report.RunID), zap.Int("cases", len(report.Cases)))
	return nil
}

// persistCases bulk inserts case results using the pgx CopyFrom protocol.
func (s *Store) persistCases(ctx context.Context, tx pgx.Tx, runID string, cases []reporting.CaseReport) error {
	rows := make([][]interface{}, len(cases))
	for i, c := range cases {
		tags := c.Tags
		if tags == nil {
			tags = []string{}
		}
		rows[i] = []interface{}{runID, c.Suite, c.Name, tags, c.Status, c.Error, toMillis(c.Elapsed)}
	}

	_, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"case_results"},
		[]string{"run_id", "suite", "name", "tags", "status", "error", "elapsed_ms"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert case results: %w", err)
	}
	return nil
}

// FetchRun loads a persisted run and its case results.
func (s *Store) FetchRun(ctx context.Context, runID string) (*reporting.RunReport, error) {
	report := &reporting.RunReport{RunID: runID, Tool: "waypoint"}

	var elapsedMS int64
	err := s.db.QueryRow(ctx,
		`SELECT started_at, target, version, passed, failed, skipped, elapsed_ms
		 FROM runs WHERE id = $1`, runID,
	).Scan(&report.StartedAt, &report.Target, &report.Version,
		&report.Passed, &report.Failed, &report.Skipped, &elapsedMS)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	report.Elapsed = fromMillis(elapsedMS)

	rows, err := s.db.Query(ctx,
		`SELECT suite, name, tags, status, error, elapsed_ms
		 FROM case_results WHERE run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load case results for run %s: %w", runID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c reporting.CaseReport
		var caseMS int64
		if err := rows.Scan(&c.Suite, &c.Name, &c.Tags, &c.Status, &c.Error, &caseMS); err != nil {
			return nil, fmt.Errorf("failed to scan case result: %w", err)
		}
		if len(c.Tags) == 0 {
			c.Tags = nil
		}
		c.Elapsed = fromMillis(caseMS)
		report.Cases = append(report.Cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate case results: %w", err)
	}
	return report, nil
}

func toMillis(seconds float64) int64 {
	return int64(seconds * 1000)
}

func fromMillis(ms int64) float64 {
	return time.Duration(ms * int64(time.Millisecond)).Seconds()
}
