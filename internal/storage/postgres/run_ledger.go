// Package postgres records pipeline runs in a Postgres ledger table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
)

const defaultTable = "catalog_runs"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for ledger rows.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RunLedger appends one row per run.
type RunLedger struct {
	pool  execCloser
	table string
}

// NewRunLedger connects a pool using cfg.
func NewRunLedger(ctx context.Context, cfg Config) (*RunLedger, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunLedger{pool: pool, table: table}, nil
}

// NewRunLedgerWithPool constructs a ledger from an existing pool (primarily for testing).
func NewRunLedgerWithPool(pool execCloser, table string) (*RunLedger, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RunLedger{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (l *RunLedger) Close() {
	if l == nil || l.pool == nil {
		return
	}
	l.pool.Close()
}

// EnsureSchema creates the ledger table when it does not exist.
func (l *RunLedger) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	failed_stage TEXT,
	error_message TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	pages INTEGER NOT NULL,
	stop_reason TEXT,
	records_fetched INTEGER NOT NULL,
	records_cleaned INTEGER NOT NULL,
	raw_path TEXT,
	raw_sha256 TEXT,
	processed_path TEXT,
	processed_sha256 TEXT
)`, l.table)
	if _, err := l.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create ledger table: %w", err)
	}
	return nil
}

// RecordRun inserts the summary. Re-recording a run ID replaces the row.
func (l *RunLedger) RecordRun(ctx context.Context, run catalog.RunSummary) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("run ledger is not configured")
	}
	if run.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	category,
	name,
	status,
	failed_stage,
	error_message,
	started_at,
	finished_at,
	pages,
	stop_reason,
	records_fetched,
	records_cleaned,
	raw_path,
	raw_sha256,
	processed_path,
	processed_sha256
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)
ON CONFLICT (run_id) DO UPDATE SET
	status = EXCLUDED.status,
	failed_stage = EXCLUDED.failed_stage,
	error_message = EXCLUDED.error_message,
	finished_at = EXCLUDED.finished_at,
	pages = EXCLUDED.pages,
	stop_reason = EXCLUDED.stop_reason,
	records_fetched = EXCLUDED.records_fetched,
	records_cleaned = EXCLUDED.records_cleaned,
	raw_path = EXCLUDED.raw_path,
	raw_sha256 = EXCLUDED.raw_sha256,
	processed_path = EXCLUDED.processed_path,
	processed_sha256 = EXCLUDED.processed_sha256`, l.table)

	args := []any{
		run.RunID,
		run.Category,
		run.Name,
		run.Status,
		nullable(run.FailedStage),
		nullable(run.Error),
		run.StartedAt,
		run.FinishedAt,
		run.Pages,
		nullable(string(run.StopReason)),
		run.RecordsFetched,
		run.RecordsCleaned,
		nullable(run.RawPath),
		nullable(run.RawSHA256),
		nullable(run.ProcessedPath),
		nullable(run.ProcessedSHA256),
	}
	if _, err := l.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
