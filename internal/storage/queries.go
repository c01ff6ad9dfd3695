package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type MirrorColumn struct {
	Position int64
	Name     string
}

type MirrorRow struct {
	RowIndex int64
	Cells    string
}

type MirrorRun struct {
	ID         int64
	Source     string
	StartedAt  int64
	FinishedAt int64
	RowCount   int64
	Status     string
	Error      string
}

const deleteColumns = `DELETE FROM mirror_columns`

func (q *Queries) DeleteColumns(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteColumns)
	return err
}

const deleteRows = `DELETE FROM mirror_rows`

func (q *Queries) DeleteRows(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteRows)
	return err
}

const insertColumn = `INSERT INTO mirror_columns (position, name) VALUES (?, ?)`

func (q *Queries) InsertColumn(ctx context.Context, arg MirrorColumn) error {
	_, err := q.db.ExecContext(ctx, insertColumn, arg.Position, arg.Name)
	return err
}

const insertRow = `INSERT INTO mirror_rows (row_index, cells) VALUES (?, ?)`

func (q *Queries) InsertRow(ctx context.Context, arg MirrorRow) error {
	_, err := q.db.ExecContext(ctx, insertRow, arg.RowIndex, arg.Cells)
	return err
}

const listColumns = `SELECT position, name FROM mirror_columns ORDER BY position`

func (q *Queries) ListColumns(ctx context.Context) ([]MirrorColumn, error) {
	rows, err := q.db.QueryContext(ctx, listColumns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MirrorColumn
	for rows.Next() {
		var i MirrorColumn
		if err := rows.Scan(&i.Position, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRows = `SELECT row_index, cells FROM mirror_rows ORDER BY row_index`

func (q *Queries) ListRows(ctx context.Context) ([]MirrorRow, error) {
	rows, err := q.db.QueryContext(ctx, listRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MirrorRow
	for rows.Next() {
		var i MirrorRow
		if err := rows.Scan(&i.RowIndex, &i.Cells); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertRun = `INSERT INTO mirror_runs (source, started_at, finished_at, row_count, status, error)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

type InsertRunParams struct {
	Source     string
	StartedAt  int64
	FinishedAt int64
	RowCount   int64
	Status     string
	Error      string
}

func (q *Queries) InsertRun(ctx context.Context, arg InsertRunParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertRun,
		arg.Source, arg.StartedAt, arg.FinishedAt, arg.RowCount, arg.Status, arg.Error)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const lastRun = `SELECT id, source, started_at, finished_at, row_count, status, error
FROM mirror_runs
ORDER BY id DESC
LIMIT 1`

func (q *Queries) LastRun(ctx context.Context) (MirrorRun, error) {
	row := q.db.QueryRowContext(ctx, lastRun)
	var i MirrorRun
	err := row.Scan(&i.ID, &i.Source, &i.StartedAt, &i.FinishedAt, &i.RowCount, &i.Status, &i.Error)
	return i, err
}

const lastSuccessfulRun = `SELECT id, source, started_at, finished_at, row_count, status, error
FROM mirror_runs
WHERE status = 'ok'
ORDER BY id DESC
LIMIT 1`

func (q *Queries) LastSuccessfulRun(ctx context.Context) (MirrorRun, error) {
	row := q.db.QueryRowContext(ctx, lastSuccessfulRun)
	var i MirrorRun
	err := row.Scan(&i.ID, &i.Source, &i.StartedAt, &i.FinishedAt, &i.RowCount, &i.Status, &i.Error)
	return i, err
}
