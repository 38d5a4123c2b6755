package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:          4,
		MinConns:          0,
		MaxConnLifetime:   30 * time.Minute,
		MaxConnIdleTime:   5 * time.Minute,
		HealthCheckPeriod: 30 * time.Second,
	}
}

// Postgres stores runs in PostgreSQL through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, pings and applies the schema.
func NewPostgres(ctx context.Context, databaseURL string, cfg PoolConfig) (*Postgres, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("postgres: database url is required")
	}
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	j := &Postgres{pool: pool}
	if err := j.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

// Migrate creates the tables if they do not exist.
func (j *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range pgSchema {
		if _, err := j.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

const (
	pgInsertRun = `insert into runs (` + runColumns + `)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)`
	pgInsertEvent = `insert into events (` + eventColumns + `)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	pgInsertTrade = `insert into trades (` + tradeColumns + `)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
)

var pgEquityColumns = []string{"run_id", "time", "equity", "realized", "unrealized"}

func (j *Postgres) RecordRun(ctx context.Context, r RunRecord) error {
	_, err := j.pool.Exec(ctx, pgInsertRun, runArgs(r)...)
	return err
}

func (j *Postgres) RecordEvents(ctx context.Context, evs []EventRecord) error {
	b := &pgx.Batch{}
	queueEvents(b, evs)
	return sendBatch(ctx, j.pool, b)
}

func (j *Postgres) RecordTrades(ctx context.Context, trs []TradeRecord) error {
	b := &pgx.Batch{}
	queueTrades(b, trs)
	return sendBatch(ctx, j.pool, b)
}

// RecordEquity uses COPY; equity curves are one row per bar.
func (j *Postgres) RecordEquity(ctx context.Context, eq []EquityRecord) error {
	return copyEquity(ctx, j.pool, eq)
}

// RecordBundle writes the run header and all of its rows in one transaction.
func (j *Postgres) RecordBundle(ctx context.Context, bundle RunBundle) error {
	return pgx.BeginFunc(ctx, j.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, pgInsertRun, runArgs(bundle.Run)...); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		b := &pgx.Batch{}
		queueEvents(b, bundle.Events)
		queueTrades(b, bundle.Trades)
		if err := sendBatch(ctx, tx, b); err != nil {
			return fmt.Errorf("events and trades: %w", err)
		}
		if err := copyEquity(ctx, tx, bundle.Equity); err != nil {
			return fmt.Errorf("equity: %w", err)
		}
		return nil
	})
}

// pgConn is satisfied by both the pool and a transaction.
type pgConn interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

func queueEvents(b *pgx.Batch, evs []EventRecord) {
	for _, ev := range evs {
		b.Queue(pgInsertEvent, eventArgs(ev)...)
	}
}

func queueTrades(b *pgx.Batch, trs []TradeRecord) {
	for _, t := range trs {
		b.Queue(pgInsertTrade, tradeArgs(t)...)
	}
}

func sendBatch(ctx context.Context, c pgConn, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	return c.SendBatch(ctx, b).Close()
}

func copyEquity(ctx context.Context, c pgConn, eq []EquityRecord) error {
	if len(eq) == 0 {
		return nil
	}
	_, err := c.CopyFrom(ctx, pgx.Identifier{"equity"}, pgEquityColumns,
		pgx.CopyFromSlice(len(eq), func(i int) ([]any, error) {
			return equityArgs(eq[i]), nil
		}),
	)
	return err
}

func (j *Postgres) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := j.pool.Query(ctx,
		`select `+runColumns+` from runs order by created desc, run_id desc limit $1`, lim)
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
	return out, rows.Err()
}

func (j *Postgres) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	row := j.pool.QueryRow(ctx, `select `+runColumns+` from runs where run_id = $1`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RunRecord{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return RunRecord{}, err
	}
	return r, nil
}

func (j *Postgres) ListEvents(ctx context.Context, runID string) ([]EventRecord, error) {
	rows, err := j.pool.Query(ctx,
		`select `+eventColumns+` from events where run_id = $1 order by seq asc`, runID)
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
	return out, rows.Err()
}

func (j *Postgres) ListTrades(ctx context.Context, runID string) ([]TradeRecord, error) {
	rows, err := j.pool.Query(ctx,
		`select `+tradeColumns+` from trades where run_id = $1 order by trade_no asc`, runID)
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
	return out, rows.Err()
}

func (j *Postgres) ListEquity(ctx context.Context, runID string) ([]EquityRecord, error) {
	rows, err := j.pool.Query(ctx,
		`select `+equityColumns+` from equity where run_id = $1 order by time asc`, runID)
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
	return out, rows.Err()
}

// DeleteRun removes a run; events, trades and equity go with it.
func (j *Postgres) DeleteRun(ctx context.Context, runID string) error {
	tag, err := j.pool.Exec(ctx, `delete from runs where run_id = $1`, runID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return nil
}

func (j *Postgres) Close() error {
	j.pool.Close()
	return nil
}
