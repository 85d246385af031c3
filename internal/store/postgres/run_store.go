// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sigmetapp/seohqs-sub000/internal/analyzer"
	"github.com/sigmetapp/seohqs-sub000/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RunStoreConfig controls the Postgres connection pool used for run rows.
type RunStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RunStore persists analysis runs and reports in a single Postgres
// table, with the report stored as a JSONB column.
type RunStore struct {
	pool  pgxPool
	table string
}

// NewRunStore creates a Postgres-backed RunStore using the provided config.
func NewRunStore(ctx context.Context, cfg RunStoreConfig) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "analysis_runs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool, table: table}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(pool pgxPool, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "analysis_runs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RunStore{pool: pool, table: table}, nil
}

// CreateRun inserts the run in the running state; an existing row is
// left untouched so the API and the progress sink can race safely.
func (s *RunStore) CreateRun(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, started_at, status, percent, total_lines, bot_visits)
VALUES ($1, $2, $3, 0, 0, 0)
ON CONFLICT (id) DO NOTHING`, s.table)
	if _, err := s.pool.Exec(ctx, query, id, startedAt.UTC(), string(store.RunRunning)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateProgress records the latest counters. Late ticks against a
// terminal run are silently dropped.
func (s *RunStore) UpdateProgress(ctx context.Context, id uuid.UUID, percent int, lines, visits int64, _ time.Time) error {
	query := fmt.Sprintf(`
UPDATE %s SET percent = $2, total_lines = $3, bot_visits = $4
WHERE id = $1 AND status = $5`, s.table)
	if _, err := s.pool.Exec(ctx, query, id, percent, lines, visits, string(store.RunRunning)); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// CompleteRun finalizes the run; the first terminal status wins.
func (s *RunStore) CompleteRun(ctx context.Context, id uuid.UUID, finishedAt time.Time, status store.RunStatus, errMsg *string) error {
	query := fmt.Sprintf(`
UPDATE %s SET finished_at = $2, status = $3, error_message = $4,
	percent = CASE WHEN $3 = $6 THEN 100 ELSE percent END
WHERE id = $1 AND status = $5`, s.table)
	_, err := s.pool.Exec(ctx, query,
		id, finishedAt.UTC(), string(status), errMsg,
		string(store.RunRunning), string(store.RunSuccess),
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// SaveResult stores the report JSON against an existing run.
func (s *RunStore) SaveResult(ctx context.Context, id uuid.UUID, result *analyzer.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	query := fmt.Sprintf(`UPDATE %s SET result = $2 WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, id, payload)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetRun returns the run row or store.ErrNotFound.
func (s *RunStore) GetRun(ctx context.Context, id uuid.UUID) (store.AnalysisRun, error) {
	query := fmt.Sprintf(`
SELECT id, started_at, finished_at, status, percent, total_lines, bot_visits, error_message
FROM %s WHERE id = $1`, s.table)

	var run store.AnalysisRun
	var status string
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &status,
		&run.Percent, &run.TotalLines, &run.BotVisits, &run.ErrorMessage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.AnalysisRun{}, store.ErrNotFound
	}
	if err != nil {
		return store.AnalysisRun{}, fmt.Errorf("select run: %w", err)
	}
	run.Status = store.RunStatus(status)
	return run, nil
}

// GetResult returns the stored report or store.ErrNotFound.
func (s *RunStore) GetResult(ctx context.Context, id uuid.UUID) (*analyzer.Result, error) {
	query := fmt.Sprintf(`SELECT result FROM %s WHERE id = $1`, s.table)

	var payload []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select result: %w", err)
	}
	if len(payload) == 0 {
		return nil, store.ErrNotFound
	}
	var res analyzer.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &res, nil
}

// ListRuns returns runs newest first, capped at limit.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]store.AnalysisRun, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
SELECT id, started_at, finished_at, status, percent, total_lines, bot_visits, error_message
FROM %s ORDER BY started_at DESC LIMIT $1`, s.table)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer rows.Close()

	var runs []store.AnalysisRun
	for rows.Next() {
		var run store.AnalysisRun
		var status string
		err := rows.Scan(
			&run.ID, &run.StartedAt, &run.FinishedAt, &status,
			&run.Percent, &run.TotalLines, &run.BotVisits, &run.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = store.RunStatus(status)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close(context.Context) error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}
