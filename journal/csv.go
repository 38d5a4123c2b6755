package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Table headers shared by the CSV journal and the export helpers.
var (
	RunsHeader = []string{
		"run_id", "created", "instrument", "dataset", "session", "strategy", "sizer",
		"start", "end", "bars", "starting_equity", "ending_equity", "closed_trades",
		"wins", "losses", "win_rate", "total_pl", "avg_trade_pl", "profit_factor",
		"max_drawdown", "max_drawdown_pct", "open_at_end",
	}
	EventsHeader = []string{
		"run_id", "seq", "bar", "kind", "time", "side", "price", "size_delta",
		"position_size", "avg_entry", "realized_pl", "reason",
	}
	TradesHeader = []string{
		"run_id", "trade_no", "side", "entry_time", "entry_price", "exit_time",
		"exit_price", "size", "adds", "realized_pl", "reason",
	}
	EquityHeader = []string{"run_id", "time", "equity", "realized", "unrealized"}
)

// CSV appends runs to four files in a directory: runs.csv, events.csv,
// trades.csv and equity.csv. A header is written when a file is new.
type CSV struct {
	dir   string
	files []*os.File

	runs, events, trades, equity *csv.Writer
}

func NewCSV(dir string) (*CSV, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	j := &CSV{dir: dir}
	open := func(name string, header []string) (*csv.Writer, error) {
		path := filepath.Join(dir, name)
		fh, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, fh)

		st, err := fh.Stat()
		if err != nil {
			return nil, err
		}
		w := csv.NewWriter(fh)
		if st.Size() == 0 {
			if err := w.Write(header); err != nil {
				return nil, err
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return nil, err
			}
		}
		return w, nil
	}

	var err error
	if j.runs, err = open("runs.csv", RunsHeader); err != nil {
		j.Close()
		return nil, err
	}
	if j.events, err = open("events.csv", EventsHeader); err != nil {
		j.Close()
		return nil, err
	}
	if j.trades, err = open("trades.csv", TradesHeader); err != nil {
		j.Close()
		return nil, err
	}
	if j.equity, err = open("equity.csv", EquityHeader); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

// Dir is the directory the files live in.
func (j *CSV) Dir() string { return j.dir }

func (j *CSV) RecordRun(_ context.Context, r RunRecord) error {
	return flushRows(j.runs, [][]string{runRow(r)})
}

func (j *CSV) RecordEvents(_ context.Context, evs []EventRecord) error {
	rows := make([][]string, len(evs))
	for i, ev := range evs {
		rows[i] = eventRow(ev)
	}
	return flushRows(j.events, rows)
}

func (j *CSV) RecordTrades(_ context.Context, trs []TradeRecord) error {
	rows := make([][]string, len(trs))
	for i, t := range trs {
		rows[i] = tradeRow(t)
	}
	return flushRows(j.trades, rows)
}

func (j *CSV) RecordEquity(_ context.Context, eq []EquityRecord) error {
	rows := make([][]string, len(eq))
	for i, e := range eq {
		rows[i] = equityRow(e)
	}
	return flushRows(j.equity, rows)
}

func (j *CSV) Close() error {
	var first error
	for _, w := range []*csv.Writer{j.runs, j.events, j.trades, j.equity} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil && first == nil {
			first = err
		}
	}
	for _, fh := range j.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.files = nil
	return first
}

// WriteEventsCSV writes evs with a header row.
func WriteEventsCSV(w io.Writer, evs []EventRecord) error {
	rows := make([][]string, 0, len(evs)+1)
	rows = append(rows, EventsHeader)
	for _, ev := range evs {
		rows = append(rows, eventRow(ev))
	}
	return flushRows(csv.NewWriter(w), rows)
}

// WriteTradesCSV writes trs with a header row.
func WriteTradesCSV(w io.Writer, trs []TradeRecord) error {
	rows := make([][]string, 0, len(trs)+1)
	rows = append(rows, TradesHeader)
	for _, t := range trs {
		rows = append(rows, tradeRow(t))
	}
	return flushRows(csv.NewWriter(w), rows)
}

// WriteEquityCSV writes eq with a header row.
func WriteEquityCSV(w io.Writer, eq []EquityRecord) error {
	rows := make([][]string, 0, len(eq)+1)
	rows = append(rows, EquityHeader)
	for _, e := range eq {
		rows = append(rows, equityRow(e))
	}
	return flushRows(csv.NewWriter(w), rows)
}

func flushRows(w *csv.Writer, rows [][]string) error {
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	return nil
}

func runRow(r RunRecord) []string {
	s := r.Summary
	return []string{
		r.RunID,
		ts(r.Created),
		r.Instrument,
		r.Dataset,
		r.Session,
		r.Strategy,
		r.Sizer,
		ts(r.Start),
		ts(r.End),
		strconv.Itoa(r.Bars),
		f(s.StartingEquity),
		f(s.EndingEquity),
		strconv.Itoa(s.ClosedTrades),
		strconv.Itoa(s.Wins),
		strconv.Itoa(s.Losses),
		f(s.WinRate),
		f(s.TotalPL),
		f(s.AvgTradePL),
		f(s.ProfitFactor),
		f(s.MaxDrawdown),
		f(s.MaxDrawdownPct),
		strconv.FormatBool(s.OpenAtEnd),
	}
}

func eventRow(ev EventRecord) []string {
	pl := ""
	if ev.RealizedPL != nil {
		pl = f(*ev.RealizedPL)
	}
	return []string{
		ev.RunID,
		strconv.Itoa(ev.Seq),
		strconv.Itoa(ev.Bar),
		ev.Kind,
		ts(ev.Time),
		ev.Side,
		f(ev.Price),
		f(ev.SizeDelta),
		f(ev.PositionSize),
		f(ev.AvgEntry),
		pl,
		ev.Reason,
	}
}

func tradeRow(t TradeRecord) []string {
	return []string{
		t.RunID,
		strconv.Itoa(t.TradeNo),
		t.Side,
		ts(t.EntryTime),
		f(t.EntryPrice),
		ts(t.ExitTime),
		f(t.ExitPrice),
		f(t.Size),
		strconv.Itoa(t.Adds),
		f(t.RealizedPL),
		t.Reason,
	}
}

func equityRow(e EquityRecord) []string {
	return []string{
		e.RunID,
		ts(e.Time),
		f(e.Equity),
		f(e.Realized),
		f(e.Unrealized),
	}
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
