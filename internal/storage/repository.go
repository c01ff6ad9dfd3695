package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"asistencia/internal/core"
	ports "asistencia/internal/sheets"

	_ "modernc.org/sqlite"
)

// ErrEmptyMirror is returned by ReadTable before the first successful mirror.
var ErrEmptyMirror = fmt.Errorf("sheet mirror is empty: %w", core.ErrEmptyTable)

const (
	RunOK    = "ok"
	RunError = "error"
)

// Run describes one mirror attempt.
type Run struct {
	ID         int64
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
	Rows       int
	OK         bool
	Error      string
}

// SQLiteRepository keeps a local copy of the attendance sheet.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var (
	_ ports.TableReader = (*SQLiteRepository)(nil)
	_ ports.TableWriter = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ReplaceTable swaps the whole mirror in one transaction and records a
// successful run.
func (r *SQLiteRepository) ReplaceTable(ctx context.Context, source string, t core.Table) error {
	started := time.Now()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteRows(ctx); err != nil {
		return fmt.Errorf("clear rows: %w", err)
	}
	if err := q.DeleteColumns(ctx); err != nil {
		return fmt.Errorf("clear columns: %w", err)
	}
	for i, name := range t.Header {
		if err := q.InsertColumn(ctx, MirrorColumn{Position: int64(i), Name: name}); err != nil {
			return fmt.Errorf("insert column %q: %w", name, err)
		}
	}
	for i, row := range t.Rows {
		cells, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		if err := q.InsertRow(ctx, MirrorRow{RowIndex: int64(i), Cells: string(cells)}); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if _, err := q.InsertRun(ctx, InsertRunParams{
		Source:     source,
		StartedAt:  started.UnixMilli(),
		FinishedAt: time.Now().UnixMilli(),
		RowCount:   int64(len(t.Rows)),
		Status:     RunOK,
	}); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mirror: %w", err)
	}

	slog.InfoContext(ctx, "Sheet mirror replaced",
		"source", source,
		"rows", len(t.Rows),
		"columns", len(t.Header),
		"duration_ms", time.Since(started).Milliseconds())
	return nil
}

// RecordFailure stores a failed run. The mirror contents are untouched.
func (r *SQLiteRepository) RecordFailure(ctx context.Context, source string, started time.Time, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := r.queries.InsertRun(ctx, InsertRunParams{
		Source:     source,
		StartedAt:  started.UnixMilli(),
		FinishedAt: time.Now().UnixMilli(),
		Status:     RunError,
		Error:      msg,
	})
	if err != nil {
		return fmt.Errorf("record failed run: %w", err)
	}
	return nil
}

// ReadTable returns the mirrored sheet.
func (r *SQLiteRepository) ReadTable(ctx context.Context) (core.Table, error) {
	cols, err := r.queries.ListColumns(ctx)
	if err != nil {
		return core.Table{}, fmt.Errorf("list columns: %w", err)
	}
	if len(cols) == 0 {
		return core.Table{}, ErrEmptyMirror
	}
	rows, err := r.queries.ListRows(ctx)
	if err != nil {
		return core.Table{}, fmt.Errorf("list rows: %w", err)
	}

	t := core.Table{Header: make([]string, len(cols)), Rows: make([][]string, 0, len(rows))}
	for i, c := range cols {
		t.Header[i] = c.Name
	}
	for _, row := range rows {
		var cells []string
		if err := json.Unmarshal([]byte(row.Cells), &cells); err != nil {
			return core.Table{}, fmt.Errorf("decode row %d: %w", row.RowIndex, err)
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}

// LastRun returns the most recent mirror attempt; ok is false when none
// was recorded yet.
func (r *SQLiteRepository) LastRun(ctx context.Context) (Run, bool, error) {
	return r.run(ctx, r.queries.LastRun)
}

// LastSuccessfulRun returns the run that produced the current mirror.
func (r *SQLiteRepository) LastSuccessfulRun(ctx context.Context) (Run, bool, error) {
	return r.run(ctx, r.queries.LastSuccessfulRun)
}

func (r *SQLiteRepository) run(ctx context.Context, get func(context.Context) (MirrorRun, error)) (Run, bool, error) {
	mr, err := get(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("get last run: %w", err)
	}
	return Run{
		ID:         mr.ID,
		Source:     mr.Source,
		StartedAt:  time.UnixMilli(mr.StartedAt),
		FinishedAt: time.UnixMilli(mr.FinishedAt),
		Rows:       int(mr.RowCount),
		OK:         mr.Status == RunOK,
		Error:      mr.Error,
	}, true, nil
}
