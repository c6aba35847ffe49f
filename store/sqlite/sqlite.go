/*
Package sqlite provides a SQLite-backed implementation of report.Store.

PURPOSE:
  Persists report runs, the append-only adjustment log and the default
  budget source uploaded by an admin.

KEY TABLES:
  report_runs:    one row per run; params and dataset as JSON documents
  adjustments:    append-only manual corrections, keyed to a run
  budget_sources: single-row table holding the default budget CSV

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on report_runs or adjustments
  - A single adjustment is never deleted; whole runs are removed with
    their log when they expire

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and one pooled connection, so that
  ":memory:" databases are shared by all callers.

USAGE:
  store, err := sqlite.New("./data/reports.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := report.NewService(engine, store, logger, report.Options{})

SEE ALSO:
  - report/store.go: interface definition
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Brottuetchen/Quartalsreport/generic"
	"github.com/Brottuetchen/Quartalsreport/report"
)

// timeLayout sorts lexically in creation order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Store implements report.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ report.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS report_runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		report_type TEXT NOT NULL,
		time_grouping TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		entries INTEGER NOT NULL,
		diagnostics INTEGER NOT NULL,
		budget_origin TEXT NOT NULL,
		budget_name TEXT,
		booking_name TEXT,
		params_json TEXT NOT NULL,
		dataset_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_report_runs_created_at
		ON report_runs(created_at);

	-- Adjustments (append-only log)
	CREATE TABLE IF NOT EXISTS adjustments (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		run_id TEXT NOT NULL REFERENCES report_runs(id) ON DELETE CASCADE,
		entry_id TEXT NOT NULL,
		delta_hours TEXT NOT NULL,
		reason TEXT,
		actor TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_run
		ON adjustments(run_id, seq);

	-- Default budget source (at most one row)
	CREATE TABLE IF NOT EXISTS budget_sources (
		slot INTEGER PRIMARY KEY CHECK (slot = 1),
		name TEXT NOT NULL,
		data BLOB NOT NULL,
		records INTEGER NOT NULL,
		uploaded_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REPORT RUNS
// =============================================================================

// SaveRun inserts a run. Runs are never updated.
func (s *Store) SaveRun(ctx context.Context, run report.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	datasetJSON, err := json.Marshal(run.Dataset)
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	query := `
		INSERT INTO report_runs
		(id, created_at, report_type, time_grouping, period_start, period_end, entries,
		 diagnostics, budget_origin, budget_name, booking_name, params_json, dataset_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		run.ID,
		run.CreatedAt.UTC().Format(timeLayout),
		run.Dataset.ReportType,
		run.Dataset.Grouping,
		run.Dataset.Period.Start.String(),
		run.Dataset.Period.End.String(),
		len(run.Dataset.Ledger),
		len(run.Dataset.Diagnostics),
		run.BudgetOrigin,
		nullString(run.BudgetName),
		nullString(run.BookingName),
		string(paramsJSON),
		string(datasetJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetRun loads a run with its dataset.
func (s *Store) GetRun(ctx context.Context, id string) (report.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		run                     report.Run
		createdAt               string
		budgetName, bookingName sql.NullString
		paramsJSON, datasetJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, budget_origin, budget_name, booking_name, params_json, dataset_json
		FROM report_runs WHERE id = ?
	`, id).Scan(&run.ID, &createdAt, &run.BudgetOrigin, &budgetName, &bookingName, &paramsJSON, &datasetJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return report.Run{}, generic.ErrRunNotFound
	}
	if err != nil {
		return report.Run{}, fmt.Errorf("failed to load run: %w", err)
	}

	run.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	run.BudgetName = budgetName.String
	run.BookingName = bookingName.String
	if err := json.Unmarshal([]byte(paramsJSON), &run.Params); err != nil {
		return report.Run{}, fmt.Errorf("failed to decode params of run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(datasetJSON), &run.Dataset); err != nil {
		return report.Run{}, fmt.Errorf("failed to decode dataset of run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns summaries without decoding datasets.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]report.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, created_at, report_type, time_grouping, period_start, period_end, entries, diagnostics
		FROM report_runs
		ORDER BY created_at DESC, id ASC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []report.RunSummary{}
	for rows.Next() {
		var (
			r                     report.RunSummary
			createdAt, start, end string
			reportType, grouping  string
		)
		if err := rows.Scan(&r.ID, &createdAt, &reportType, &grouping, &start, &end, &r.Entries, &r.Diagnostics); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		r.ReportType = generic.ReportType(reportType)
		r.Grouping = generic.Grouping(grouping)
		r.Period = generic.Period{Start: parseDate(start), End: parseDate(end)}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRunsBefore removes expired runs and their adjustment logs atomically.
func (s *Store) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	ts := cutoff.UTC().Format(timeLayout)
	if _, err := sqlTx.ExecContext(ctx, `
		DELETE FROM adjustments
		WHERE run_id IN (SELECT id FROM report_runs WHERE created_at < ?)
	`, ts); err != nil {
		return 0, fmt.Errorf("failed to delete adjustments: %w", err)
	}
	res, err := sqlTx.ExecContext(ctx, `DELETE FROM report_runs WHERE created_at < ?`, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), sqlTx.Commit()
}

// =============================================================================
// ADJUSTMENTS (report.AdjustmentStore interface)
// =============================================================================

// AppendAdjustment adds an adjustment to the log.
func (s *Store) AppendAdjustment(ctx context.Context, adj report.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO adjustments
		(id, run_id, entry_id, delta_hours, reason, actor, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		adj.ID,
		adj.RunID,
		adj.EntryID,
		adj.Delta.Value.String(),
		nullString(adj.Reason),
		nullString(adj.Actor),
		nullString(adj.IdempotencyKey),
		adj.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		switch {
		case isConstraint(err, sqlite3.ErrConstraintUnique):
			return generic.ErrDuplicateIdempotencyKey
		case isConstraint(err, sqlite3.ErrConstraintForeignKey):
			return generic.ErrRunNotFound
		}
		return fmt.Errorf("failed to append adjustment: %w", err)
	}
	return nil
}

// Adjustments returns a run's log in append order.
func (s *Store) Adjustments(ctx context.Context, runID string) ([]report.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, entry_id, delta_hours, reason, actor, idempotency_key, created_at
		FROM adjustments
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer rows.Close()

	adjs := []report.Adjustment{}
	for rows.Next() {
		adj, err := scanAdjustment(rows)
		if err != nil {
			return nil, err
		}
		adjs = append(adjs, adj)
	}
	return adjs, rows.Err()
}

// AdjustmentExists checks if an idempotency key exists.
func (s *Store) AdjustmentExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM adjustments WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

func scanAdjustment(rows *sql.Rows) (report.Adjustment, error) {
	var (
		adj                        report.Adjustment
		delta, createdAt           string
		reason, actor, idempotency sql.NullString
	)
	if err := rows.Scan(&adj.ID, &adj.RunID, &adj.EntryID, &delta, &reason, &actor, &idempotency, &createdAt); err != nil {
		return adj, fmt.Errorf("failed to scan adjustment: %w", err)
	}
	d, err := decimal.NewFromString(delta)
	if err != nil {
		return adj, fmt.Errorf("adjustment %s: bad delta %q: %w", adj.ID, delta, err)
	}
	adj.Delta = generic.HoursOf(d)
	adj.Reason = reason.String
	adj.Actor = actor.String
	adj.IdempotencyKey = idempotency.String
	adj.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return adj, nil
}

// =============================================================================
// DEFAULT BUDGET SOURCE
// =============================================================================

// SaveBudgetFile replaces the default budget source.
func (s *Store) SaveBudgetFile(ctx context.Context, file report.BudgetFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budget_sources (slot, name, data, records, uploaded_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			name = excluded.name,
			data = excluded.data,
			records = excluded.records,
			uploaded_at = excluded.uploaded_at
	`, file.Name, file.Data, file.Records, file.UploadedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save budget source: %w", err)
	}
	return nil
}

// BudgetFile returns the default budget source.
func (s *Store) BudgetFile(ctx context.Context) (report.BudgetFile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		file       report.BudgetFile
		uploadedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT name, data, records, uploaded_at FROM budget_sources WHERE slot = 1",
	).Scan(&file.Name, &file.Data, &file.Records, &uploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return report.BudgetFile{}, false, nil
	}
	if err != nil {
		return report.BudgetFile{}, false, fmt.Errorf("failed to load budget source: %w", err)
	}
	file.UploadedAt, _ = time.Parse(timeLayout, uploadedAt)
	return file, true, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDate(s string) generic.Date {
	d, _ := generic.ParseDate(s)
	return d
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.ExtendedCode == code
}
