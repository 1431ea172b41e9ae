package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/colresolve/internal/extract"
)

// Run is one saved extraction run.
type Run struct {
	ID          string    `json:"id" yaml:"id"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	Dialect     string    `json:"dialect" yaml:"dialect"`
	Files       int       `json:"files" yaml:"files"`
	Successful  int       `json:"successful" yaml:"successful"`
	ZeroColumns int       `json:"zero_columns" yaml:"zero_columns"`
	Failed      int       `json:"failed" yaml:"failed"`
	Columns     int       `json:"columns" yaml:"columns"`
}

// ColumnRef is one stored column reference.
type ColumnRef struct {
	RunID      string `json:"run_id" yaml:"run_id"`
	Path       string `json:"path" yaml:"path"`
	Report     string `json:"report" yaml:"report"`
	Dataset    string `json:"dataset" yaml:"dataset"`
	Column     string `json:"column" yaml:"column"`
	Confidence string `json:"confidence" yaml:"confidence"`
	Ambiguous  bool   `json:"ambiguous,omitempty" yaml:"ambiguous,omitempty"`
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveRun stores results as a new run in a single transaction.
func (s *Store) SaveRun(ctx context.Context, dialectName string, results []extract.FileResult) (run *Run, err error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	sum := extract.Summarize(results)
	run = &Run{
		ID:          generateID(),
		StartedAt:   time.Now().UTC(),
		Dialect:     dialectName,
		Files:       sum.Files,
		Successful:  sum.Successful,
		ZeroColumns: sum.ZeroColumns,
		Failed:      sum.Failed,
		Columns:     sum.Total,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, dialect, files, successful, zero_columns, failed, columns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.Format(timeLayout), run.Dialect,
		run.Files, run.Successful, run.ZeroColumns, run.Failed, run.Columns,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	for _, r := range results {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO files (run_id, path, report, dataset, dialect, status, fallback)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, r.Path, r.Report, r.Dataset, r.Dialect, string(r.Status()), r.Fallback,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert file %s: %w", r.Path, err)
		}
		fileID, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read file id: %w", err)
		}
		for i, c := range r.Columns {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO column_refs (file_id, position, qualified, confidence, ambiguous)
				 VALUES (?, ?, ?, ?, ?)`,
				fileID, i, c.Qualified(), string(c.Confidence), c.Ambiguous,
			)
			if err != nil {
				return nil, fmt.Errorf("failed to insert column %s: %w", c.Qualified(), err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Debug("run saved",
		slog.String("id", run.ID),
		slog.Int("files", run.Files),
		slog.Int("columns", run.Columns))
	return run, nil
}

const runColumns = `id, started_at, dialect, files, successful, zero_columns, failed, columns`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var started string
	if err := row.Scan(&r.ID, &started, &r.Dialect, &r.Files, &r.Successful, &r.ZeroColumns, &r.Failed, &r.Columns); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", started, err)
	}
	r.StartedAt = t
	return &r, nil
}

// GetRun returns a run by ID. An empty ID selects the latest run.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	var row *sql.Row
	if id == "" {
		row = s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	}
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		if id == "" {
			return nil, fmt.Errorf("%w: catalog is empty", ErrRunNotFound)
		}
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const refQuery = `SELECT f.run_id, f.path, f.report, f.dataset, c.qualified, c.confidence, c.ambiguous
	FROM column_refs c JOIN files f ON f.id = c.file_id`

func (s *Store) queryRefs(ctx context.Context, query string, args ...any) ([]ColumnRef, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var refs []ColumnRef
	for rows.Next() {
		var ref ColumnRef
		if err := rows.Scan(&ref.RunID, &ref.Path, &ref.Report, &ref.Dataset, &ref.Column, &ref.Confidence, &ref.Ambiguous); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ColumnsForRun returns the run's columns file by file in emission order.
func (s *Store) ColumnsForRun(ctx context.Context, runID string) ([]ColumnRef, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	return s.queryRefs(ctx, refQuery+` WHERE f.run_id = ? ORDER BY f.id, c.position`, runID)
}

// FindColumn returns every stored reference to a qualified column,
// matched case-insensitively, newest run first.
func (s *Store) FindColumn(ctx context.Context, qualified string) ([]ColumnRef, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	return s.queryRefs(ctx,
		refQuery+` JOIN runs r ON r.id = f.run_id
		WHERE c.qualified = ? COLLATE NOCASE
		ORDER BY r.started_at DESC, r.rowid DESC, f.id, c.position`, qualified)
}

// DeleteRun removes a run and everything recorded under it.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if s.db == nil {
		return ErrNotOpen
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
