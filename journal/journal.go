// Package journal persists backtest runs: the run header with its summary,
// the trade event log, the closed trades and the equity curve.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/intraday/backtest"
	"github.com/rustyeddy/intraday/sim"
)

// ErrNotFound is returned (wrapped) when a run does not exist.
var ErrNotFound = errors.New("journal: not found")

// RunRecord is one backtest run.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	Created    time.Time `json:"created"`
	Instrument string    `json:"instrument"`
	Dataset    string    `json:"dataset"`
	Session    string    `json:"session"`
	Strategy   string    `json:"strategy"`
	Sizer      string    `json:"sizer"`

	// Config is the JSON encoded run configuration.
	Config json.RawMessage `json:"config,omitempty"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Bars  int       `json:"bars"`

	Summary backtest.Summary `json:"summary"`
}

// EventRecord is one trade event of a run.
type EventRecord struct {
	RunID        string    `json:"run_id"`
	Seq          int       `json:"seq"`
	Bar          int       `json:"bar"`
	Kind         string    `json:"kind"`
	Time         time.Time `json:"time"`
	Side         string    `json:"side"`
	Price        float64   `json:"price"`
	SizeDelta    float64   `json:"size_delta"`
	PositionSize float64   `json:"position_size"`
	AvgEntry     float64   `json:"avg_entry"`
	RealizedPL   *float64  `json:"realized_pl"`
	Reason       string    `json:"reason"`
}

// TradeRecord is one closed trade of a run. TradeNo is 1-based.
type TradeRecord struct {
	RunID      string    `json:"run_id"`
	TradeNo    int       `json:"trade_no"`
	Side       string    `json:"side"`
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitTime   time.Time `json:"exit_time"`
	ExitPrice  float64   `json:"exit_price"`
	Size       float64   `json:"size"`
	Adds       int       `json:"adds"`
	RealizedPL float64   `json:"realized_pl"`
	Reason     string    `json:"reason"`
}

// EquityRecord is one equity sample of a run.
type EquityRecord struct {
	RunID      string    `json:"run_id"`
	Time       time.Time `json:"time"`
	Equity     float64   `json:"equity"`
	Realized   float64   `json:"realized"`
	Unrealized float64   `json:"unrealized"`
}

// Journal is a write-only run sink.
type Journal interface {
	RecordRun(ctx context.Context, r RunRecord) error
	RecordEvents(ctx context.Context, evs []EventRecord) error
	RecordTrades(ctx context.Context, trs []TradeRecord) error
	RecordEquity(ctx context.Context, eq []EquityRecord) error
	Close() error
}

// Reader queries stored runs. Runs are listed newest first; everything
// else comes back in run order.
type Reader interface {
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	GetRun(ctx context.Context, runID string) (RunRecord, error)
	ListEvents(ctx context.Context, runID string) ([]EventRecord, error)
	ListTrades(ctx context.Context, runID string) ([]TradeRecord, error)
	ListEquity(ctx context.Context, runID string) ([]EquityRecord, error)
}

// RunBundle is everything one run writes.
type RunBundle struct {
	Run    RunRecord
	Events []EventRecord
	Trades []TradeRecord
	Equity []EquityRecord
}

// NewRunBundle converts res into the records stored under run.
func NewRunBundle(run RunRecord, res *backtest.Result) RunBundle {
	return RunBundle{
		Run:    run,
		Events: EventsFrom(run.RunID, res.Events),
		Trades: TradesFrom(run.RunID, res.Trades),
		Equity: EquityFrom(run.RunID, res.Equity),
	}
}

// BundleJournal writes a whole run in one transaction: either every row
// lands or none does.
type BundleJournal interface {
	RecordBundle(ctx context.Context, b RunBundle) error
}

// Store is a transactional journal that can also be queried and pruned.
type Store interface {
	Journal
	BundleJournal
	Reader

	// DeleteRun removes a run with its events, trades and equity.
	DeleteRun(ctx context.Context, runID string) error
}

// NewRunRecord builds the run header for res.
func NewRunRecord(runID string, info backtest.RunInfo, config []byte, res *backtest.Result) RunRecord {
	created := info.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return RunRecord{
		RunID:      runID,
		Created:    created,
		Instrument: info.Instrument,
		Dataset:    info.Dataset,
		Session:    info.Session,
		Strategy:   res.Strategy,
		Sizer:      res.Sizer,
		Config:     config,
		Start:      res.Start,
		End:        res.End,
		Bars:       res.Bars,
		Summary:    res.Summary,
	}
}

// Info returns the report header for the run.
func (r RunRecord) Info() backtest.RunInfo {
	return backtest.RunInfo{
		RunID:      r.RunID,
		Created:    r.Created,
		Instrument: r.Instrument,
		Dataset:    r.Dataset,
		Session:    r.Session,
	}
}

func EventsFrom(runID string, evs []sim.TradeEvent) []EventRecord {
	out := make([]EventRecord, len(evs))
	for i, ev := range evs {
		var pl *float64
		if ev.RealizedPL != nil {
			v := *ev.RealizedPL
			pl = &v
		}
		out[i] = EventRecord{
			RunID:        runID,
			Seq:          ev.Seq,
			Bar:          ev.Bar,
			Kind:         string(ev.Kind),
			Time:         ev.Time,
			Side:         ev.Side.String(),
			Price:        ev.Price,
			SizeDelta:    ev.SizeDelta,
			PositionSize: ev.PositionSize,
			AvgEntry:     ev.AvgEntry,
			RealizedPL:   pl,
			Reason:       ev.Reason,
		}
	}
	return out
}

func TradesFrom(runID string, trs []sim.ClosedTrade) []TradeRecord {
	out := make([]TradeRecord, len(trs))
	for i, t := range trs {
		out[i] = TradeRecord{
			RunID:      runID,
			TradeNo:    i + 1,
			Side:       t.Side.String(),
			EntryTime:  t.EntryTime,
			EntryPrice: t.EntryPrice,
			ExitTime:   t.ExitTime,
			ExitPrice:  t.ExitPrice,
			Size:       t.Size,
			Adds:       t.Adds,
			RealizedPL: t.PL,
			Reason:     t.Reason,
		}
	}
	return out
}

func EquityFrom(runID string, eq []sim.EquitySample) []EquityRecord {
	out := make([]EquityRecord, len(eq))
	for i, s := range eq {
		out[i] = EquityRecord{
			RunID:      runID,
			Time:       s.Time,
			Equity:     s.Equity,
			Realized:   s.Realized,
			Unrealized: s.Unrealized,
		}
	}
	return out
}

// Record writes a whole run to j, in one transaction when j supports it.
func Record(ctx context.Context, j Journal, run RunRecord, res *backtest.Result) error {
	b := NewRunBundle(run, res)
	if bj, ok := j.(BundleJournal); ok {
		if err := bj.RecordBundle(ctx, b); err != nil {
			return fmt.Errorf("journal: record run %s: %w", run.RunID, err)
		}
		return nil
	}

	if err := j.RecordRun(ctx, b.Run); err != nil {
		return fmt.Errorf("journal: record run: %w", err)
	}
	if err := j.RecordEvents(ctx, b.Events); err != nil {
		return fmt.Errorf("journal: record events: %w", err)
	}
	if err := j.RecordTrades(ctx, b.Trades); err != nil {
		return fmt.Errorf("journal: record trades: %w", err)
	}
	if err := j.RecordEquity(ctx, b.Equity); err != nil {
		return fmt.Errorf("journal: record equity: %w", err)
	}
	return nil
}

// Kind names a journal backend.
type Kind string

const (
	KindNone     Kind = "none"
	KindCSV      Kind = "csv"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Type        Kind
	Dir         string // csv
	DBPath      string // sqlite
	DatabaseURL string // postgres
}

// Open opens the configured backend. KindNone (or empty) returns a nil
// Journal and no error.
func Open(ctx context.Context, o Options) (Journal, error) {
	switch Kind(strings.ToLower(string(o.Type))) {
	case "", KindNone:
		return nil, nil
	case KindCSV:
		j, err := NewCSV(o.Dir)
		if err != nil {
			return nil, err
		}
		return j, nil
	default:
		return OpenStore(ctx, o)
	}
}

// OpenStore opens a queryable backend.
func OpenStore(ctx context.Context, o Options) (Store, error) {
	switch Kind(strings.ToLower(string(o.Type))) {
	case KindSQLite:
		j, err := NewSQLite(o.DBPath)
		if err != nil {
			return nil, err
		}
		return j, nil
	case KindPostgres:
		j, err := NewPostgres(ctx, o.DatabaseURL, DefaultPoolConfig())
		if err != nil {
			return nil, err
		}
		return j, nil
	case "", KindNone, KindCSV:
		return nil, fmt.Errorf("journal: type %q cannot be queried (use sqlite or postgres)", o.Type)
	default:
		return nil, fmt.Errorf("journal: unknown type %q (supported: none, csv, sqlite, postgres)", o.Type)
	}
}
