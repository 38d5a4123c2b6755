package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: db path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; the API server shares this handle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

const (
	sqliteInsertRun = `INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqliteInsertEvent  = `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqliteInsertTrade  = `INSERT INTO trades (` + tradeColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqliteInsertEquity = `INSERT INTO equity (` + equityColumns + `) VALUES (?, ?, ?, ?, ?)`
)

func (j *SQLite) RecordRun(ctx context.Context, r RunRecord) error {
	_, err := j.db.ExecContext(ctx, sqliteInsertRun, runArgs(r)...)
	return err
}

func (j *SQLite) RecordEvents(ctx context.Context, evs []EventRecord) error {
	return j.inTx(ctx, func(tx *sql.Tx) error { return insertEvents(ctx, tx, evs) })
}

func (j *SQLite) RecordTrades(ctx context.Context, trs []TradeRecord) error {
	return j.inTx(ctx, func(tx *sql.Tx) error { return insertTrades(ctx, tx, trs) })
}

func (j *SQLite) RecordEquity(ctx context.Context, eq []EquityRecord) error {
	return j.inTx(ctx, func(tx *sql.Tx) error { return insertEquity(ctx, tx, eq) })
}

// RecordBundle writes the run header and all of its rows in one transaction.
func (j *SQLite) RecordBundle(ctx context.Context, b RunBundle) error {
	return j.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqliteInsertRun, runArgs(b.Run)...); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if err := insertEvents(ctx, tx, b.Events); err != nil {
			return fmt.Errorf("events: %w", err)
		}
		if err := insertTrades(ctx, tx, b.Trades); err != nil {
			return fmt.Errorf("trades: %w", err)
		}
		if err := insertEquity(ctx, tx, b.Equity); err != nil {
			return fmt.Errorf("equity: %w", err)
		}
		return nil
	})
}

// DeleteRun removes a run and every row stored under it.
func (j *SQLite) DeleteRun(ctx context.Context, runID string) error {
	return j.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"events", "trades", "equity"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return nil
	})
}

// inTx commits when fn succeeds and rolls back otherwise.
func (j *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func insertEvents(ctx context.Context, tx *sql.Tx, evs []EventRecord) error {
	return insertAll(ctx, tx, sqliteInsertEvent, len(evs), func(i int) []any { return eventArgs(evs[i]) })
}

func insertTrades(ctx context.Context, tx *sql.Tx, trs []TradeRecord) error {
	return insertAll(ctx, tx, sqliteInsertTrade, len(trs), func(i int) []any { return tradeArgs(trs[i]) })
}

func insertEquity(ctx context.Context, tx *sql.Tx, eq []EquityRecord) error {
	return insertAll(ctx, tx, sqliteInsertEquity, len(eq), func(i int) []any { return equityArgs(eq[i]) })
}

// insertAll runs one prepared insert per row.
func insertAll(ctx context.Context, tx *sql.Tx, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return nil
}

func (j *SQLite) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRun returns a single run by ID.
func (j *SQLite) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return RunRecord{}, err
	}
	return r, nil
}

func (j *SQLite) ListEvents(ctx context.Context, runID string) ([]EventRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *SQLite) ListTrades(ctx context.Context, runID string) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE run_id = ? ORDER BY trade_no ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *SQLite) ListEquity(ctx context.Context, runID string) ([]EquityRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+equityColumns+` FROM equity WHERE run_id = ? ORDER BY rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityRecord
	for rows.Next() {
		e, err := scanEquity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
