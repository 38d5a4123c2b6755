package journal

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rustyeddy/intraday/backtest"
	"github.com/rustyeddy/intraday/market"
	"github.com/rustyeddy/intraday/risk"
	"github.com/rustyeddy/intraday/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 8, 19, 15, 0, 0, 0, time.UTC)

// testResult is a martingale run with one add, a take-profit close and a
// fresh open left open at the end.
func testResult(t *testing.T) *backtest.Result {
	t.Helper()

	closes := []float64{100, 90, 110, 109, 108}
	bars := make(market.Bars, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{Time: t0.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c}
	}

	sizer, err := risk.NewMartingale(risk.MartingaleConfig{BaseLot: 13, Multiplier: 2, Step: 10, TakeProfit: 15})
	require.NoError(t, err)

	res, err := backtest.Run(context.Background(), bars, longOnly{}, sizer, backtest.Options{})
	require.NoError(t, err)
	require.Len(t, res.Events, 4)
	return res
}

type longOnly struct{}

func (longOnly) Name() string                      { return "long_only" }
func (longOnly) Reset()                            {}
func (longOnly) Next(market.Bar) strategies.Signal { return strategies.Long }

func testRun(res *backtest.Result, id string, created time.Time) RunRecord {
	info := backtest.RunInfo{Created: created, Instrument: "gold", Dataset: "gold_1m.csv", Session: "15:00-17:00"}
	return NewRunRecord(id, info, []byte(`{"strategy":{"kind":"ema_cross"}}`), res)
}

func TestConversions(t *testing.T) {
	t.Parallel()

	res := testResult(t)

	evs := EventsFrom("R1", res.Events)
	require.Len(t, evs, 4)
	assert.Equal(t, []string{"open", "add", "close", "open"},
		[]string{evs[0].Kind, evs[1].Kind, evs[2].Kind, evs[3].Kind})
	assert.Equal(t, "long", evs[0].Side)
	assert.Nil(t, evs[0].RealizedPL)
	require.NotNil(t, evs[2].RealizedPL)
	assert.InDelta(t, 390.0, *evs[2].RealizedPL, 1e-9)
	assert.Equal(t, "take_profit", evs[2].Reason)

	trs := TradesFrom("R1", res.Trades)
	require.Len(t, trs, 1)
	assert.Equal(t, 1, trs[0].TradeNo)
	assert.Equal(t, 1, trs[0].Adds)
	assert.Equal(t, 26.0, trs[0].Size)

	eq := EquityFrom("R1", res.Equity)
	require.Len(t, eq, 5)
	assert.Equal(t, "R1", eq[4].RunID)

	run := testRun(res, "R1", time.Time{})
	assert.False(t, run.Created.IsZero())
	assert.Equal(t, "long_only", run.Strategy)
	assert.Equal(t, 5, run.Bars)
	assert.Equal(t, "R1", run.Info().RunID)
}

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	j, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	res := testResult(t)
	older := testRun(res, "01OLDER", t0.Add(-time.Hour))
	newer := testRun(res, "01NEWER", t0)

	require.NoError(t, Record(ctx, j, older, res))
	require.NoError(t, Record(ctx, j, newer, res))

	runs, err := j.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "01NEWER", runs[0].RunID)
	assert.Equal(t, "01OLDER", runs[1].RunID)

	runs, err = j.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	got, err := j.GetRun(ctx, "01NEWER")
	require.NoError(t, err)
	assert.Equal(t, "gold", got.Instrument)
	assert.Equal(t, "15:00-17:00", got.Session)
	assert.JSONEq(t, `{"strategy":{"kind":"ema_cross"}}`, string(got.Config))
	assert.True(t, got.Created.Equal(t0))
	assert.True(t, got.Start.Equal(res.Start))
	assert.Equal(t, res.Summary, got.Summary)

	_, err = j.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	evs, err := j.ListEvents(ctx, "01NEWER")
	require.NoError(t, err)
	want := EventsFrom("01NEWER", res.Events)
	require.Len(t, evs, len(want))
	for i := range want {
		assert.Equal(t, want[i].Seq, evs[i].Seq)
		assert.Equal(t, want[i].Kind, evs[i].Kind)
		assert.True(t, want[i].Time.Equal(evs[i].Time))
		assert.Equal(t, want[i].Price, evs[i].Price)
		assert.Equal(t, want[i].RealizedPL, evs[i].RealizedPL)
		assert.Equal(t, want[i].Reason, evs[i].Reason)
	}

	trs, err := j.ListTrades(ctx, "01NEWER")
	require.NoError(t, err)
	require.Len(t, trs, 1)
	assert.InDelta(t, 390.0, trs[0].RealizedPL, 1e-9)
	assert.True(t, trs[0].ExitTime.Equal(t0.Add(2*time.Minute)))

	eq, err := j.ListEquity(ctx, "01OLDER")
	require.NoError(t, err)
	require.Len(t, eq, len(res.Equity))
	for i := range eq {
		assert.Equal(t, res.Equity[i].Equity, eq[i].Equity)
	}

	dup := Record(ctx, j, newer, res)
	assert.Error(t, dup, "run IDs are unique")
	evs, err = j.ListEvents(ctx, "01NEWER")
	require.NoError(t, err)
	assert.Len(t, evs, len(res.Events), "failed rerecord adds no rows")
}

func TestSQLiteRecordBundleIsAtomic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	j, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	res := testResult(t)
	b := NewRunBundle(testRun(res, "01BROKEN", t0), res)
	b.Events[1].Seq = b.Events[0].Seq

	err = j.RecordBundle(ctx, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events")

	_, err = j.GetRun(ctx, "01BROKEN")
	assert.ErrorIs(t, err, ErrNotFound)
	runs, err := j.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	evs, err := j.ListEvents(ctx, "01BROKEN")
	require.NoError(t, err)
	assert.Empty(t, evs)

	b.Events[1].Seq = b.Events[0].Seq + 1
	require.NoError(t, j.RecordBundle(ctx, b))
	_, err = j.GetRun(ctx, "01BROKEN")
	assert.NoError(t, err)
}

func TestSQLiteDeleteRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	j, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	res := testResult(t)
	require.NoError(t, Record(ctx, j, testRun(res, "01KEEP", t0), res))
	require.NoError(t, Record(ctx, j, testRun(res, "01DROP", t0), res))

	require.NoError(t, j.DeleteRun(ctx, "01DROP"))

	_, err = j.GetRun(ctx, "01DROP")
	assert.ErrorIs(t, err, ErrNotFound)
	evs, err := j.ListEvents(ctx, "01DROP")
	require.NoError(t, err)
	assert.Empty(t, evs)
	trs, err := j.ListTrades(ctx, "01DROP")
	require.NoError(t, err)
	assert.Empty(t, trs)
	eq, err := j.ListEquity(ctx, "01DROP")
	require.NoError(t, err)
	assert.Empty(t, eq)

	eq, err = j.ListEquity(ctx, "01KEEP")
	require.NoError(t, err)
	assert.Len(t, eq, len(res.Equity))

	assert.ErrorIs(t, j.DeleteRun(ctx, "01DROP"), ErrNotFound)
}

func TestSQLiteRequiresPath(t *testing.T) {
	t.Parallel()
	_, err := NewSQLite("")
	assert.Error(t, err)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "journal")
	res := testResult(t)

	j, err := NewCSV(dir)
	require.NoError(t, err)
	require.NoError(t, Record(ctx, j, testRun(res, "R1", t0), res))
	require.NoError(t, j.Close())

	// reopening appends without a second header
	j, err = NewCSV(dir)
	require.NoError(t, err)
	require.NoError(t, Record(ctx, j, testRun(res, "R2", t0), res))
	require.NoError(t, j.Close())

	runs := readCSV(t, filepath.Join(dir, "runs.csv"))
	require.Len(t, runs, 3)
	assert.Equal(t, RunsHeader, runs[0])
	assert.Equal(t, "R1", runs[1][0])
	assert.Equal(t, "R2", runs[2][0])

	events := readCSV(t, filepath.Join(dir, "events.csv"))
	require.Len(t, events, 1+2*4)
	assert.Equal(t, EventsHeader, events[0])
	assert.Equal(t, []string{"R1", "1", "0", "open", "2025-08-19T15:00:00Z", "long",
		"100.000000", "13.000000", "13.000000", "100.000000", "", "signal"}, events[1])
	assert.Equal(t, "390.000000", events[3][10])

	trades := readCSV(t, filepath.Join(dir, "trades.csv"))
	require.Len(t, trades, 3)
	assert.Equal(t, TradesHeader, trades[0])

	equity := readCSV(t, filepath.Join(dir, "equity.csv"))
	require.Len(t, equity, 1+2*5)
	assert.Equal(t, EquityHeader, equity[0])
}

func TestWriteCSVHelpersAreDeterministic(t *testing.T) {
	t.Parallel()

	render := func() string {
		res := testResult(t)
		var buf bytes.Buffer
		require.NoError(t, WriteEventsCSV(&buf, EventsFrom("R", res.Events)))
		require.NoError(t, WriteTradesCSV(&buf, TradesFrom("R", res.Trades)))
		require.NoError(t, WriteEquityCSV(&buf, EquityFrom("R", res.Equity)))
		return buf.String()
	}

	first := render()
	assert.Equal(t, first, render())
	assert.True(t, strings.HasPrefix(first, strings.Join(EventsHeader, ",")+"\n"))
}

func TestFormatRunOrg(t *testing.T) {
	t.Parallel()

	res := testResult(t)
	run := testRun(res, "01HZYRUNID0000", t0)
	out, err := FormatRunOrg(run, TradesFrom(run.RunID, res.Trades))
	require.NoError(t, err)

	for _, want := range []string{
		"* BACKTEST: long_only gold",
		":PROPERTIES:",
		":RUN_ID:      01HZYRUNID0000",
		":SESSION:     15:00-17:00",
		":START_DATE:  2025-08-19",
		":TRADES:      1",
		":WIN_RATE:    100.00",
		":PROFIT_FAC:  999.00",
		"#+begin_src json",
		`{"strategy":{"kind":"ema_cross"}}`,
		"- Position still open at the last bar",
		"** Trades",
		"*** Trade 1: long 26 (01HZYRUN)",
		":REALIZED_PL: 390.00",
		":REASON: take_profit",
	} {
		assert.Contains(t, out, want)
	}
}

func TestFormatTradeOrgPlaceholders(t *testing.T) {
	t.Parallel()

	out, err := FormatRunOrg(RunRecord{RunID: "X", Strategy: "s"}, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "(instrument?)")
	assert.Contains(t, out, ":SESSION:     all")
	assert.Contains(t, out, "(profit-factor?)")
	assert.NotContains(t, out, "** Trades")
	assert.Equal(t, "ab", shortID("ab"))
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	j, err := Open(ctx, Options{Type: KindNone})
	require.NoError(t, err)
	assert.Nil(t, j)

	j, err = Open(ctx, Options{Type: "CSV", Dir: t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &CSV{}, j)
	require.NoError(t, j.Close())

	s, err := OpenStore(ctx, Options{Type: KindSQLite, DBPath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	require.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = OpenStore(ctx, Options{Type: KindCSV})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Type: "mongo"})
	assert.Error(t, err)

	j, err = Open(ctx, Options{Type: KindSQLite})
	assert.Error(t, err)
	assert.Nil(t, j)
}

func TestPostgresRoundTrip(t *testing.T) {
	url := os.Getenv("TRADER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TRADER_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	j, err := NewPostgres(ctx, url, DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	res := testResult(t)
	id := "TEST" + time.Now().UTC().Format("20060102150405.000000000")
	run := testRun(res, id, t0)
	t.Cleanup(func() { _ = j.DeleteRun(ctx, id) })

	broken := NewRunBundle(run, res)
	broken.Events[1].Seq = broken.Events[0].Seq
	require.Error(t, j.RecordBundle(ctx, broken))
	_, err = j.GetRun(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, Record(ctx, j, run, res))

	got, err := j.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, res.Summary, got.Summary)
	assert.JSONEq(t, string(run.Config), string(got.Config))

	evs, err := j.ListEvents(ctx, id)
	require.NoError(t, err)
	assert.Len(t, evs, len(res.Events))

	trs, err := j.ListTrades(ctx, id)
	require.NoError(t, err)
	assert.Len(t, trs, len(res.Trades))

	eq, err := j.ListEquity(ctx, id)
	require.NoError(t, err)
	assert.Len(t, eq, len(res.Equity))

	_, err = j.GetRun(ctx, id+"-missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, j.DeleteRun(ctx, id))
	eq, err = j.ListEquity(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, eq)
	assert.ErrorIs(t, j.DeleteRun(ctx, id), ErrNotFound)
}
