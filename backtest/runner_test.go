package backtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/intraday/market"
	"github.com/rustyeddy/intraday/risk"
	"github.com/rustyeddy/intraday/sim"
	"github.com/rustyeddy/intraday/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 8, 19, 15, 0, 0, 0, time.UTC)

func barsFromCloses(closes ...float64) market.Bars {
	out := make(market.Bars, len(closes))
	for i, c := range closes {
		out[i] = market.Bar{
			Time:  t0.Add(time.Duration(i) * time.Minute),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		}
	}
	return out
}

// wave is a deterministic oscillating series that crosses its EMAs often.
func wave(n int) market.Bars {
	closes := make([]float64, n)
	for i := range closes {
		x := float64(i)
		closes[i] = 3300 + 12*math.Sin(x/7) + 5*math.Sin(x/2.3) + 0.05*x
	}
	return barsFromCloses(closes...)
}

// constGen emits the same signal on every bar.
type constGen struct{ sig strategies.Signal }

func (g constGen) Name() string                      { return "const(" + g.sig.String() + ")" }
func (g constGen) Reset()                            {}
func (g constGen) Next(market.Bar) strategies.Signal { return g.sig }

// addWhileFlat is a broken sizer used to exercise state errors.
type addWhileFlat struct{}

func (addWhileFlat) Name() string { return "broken" }
func (addWhileFlat) Reset()       {}
func (addWhileFlat) Next(sim.Position, strategies.Signal, market.Bar) []sim.Intent {
	return []sim.Intent{sim.AddIntent(1, sim.ReasonAdd)}
}

func fixed(t *testing.T, size float64) risk.Sizer {
	t.Helper()
	s, err := risk.NewFixed(risk.FixedConfig{Size: size})
	require.NoError(t, err)
	return s
}

func martingale(t *testing.T) risk.Sizer {
	t.Helper()
	s, err := risk.NewMartingale(risk.MartingaleConfig{BaseLot: 13, Multiplier: 2, Step: 10, TakeProfit: 15})
	require.NoError(t, err)
	return s
}

func countKind(events []sim.TradeEvent, k sim.EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == k {
			n++
		}
	}
	return n
}

func TestRunner_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bars := barsFromCloses(1, 2, 3)

	t.Run("missing generator", func(t *testing.T) {
		t.Parallel()
		r := &Runner{Sizer: fixed(t, 1)}
		_, err := r.Run(ctx, bars)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Generator is required")
	})

	t.Run("missing sizer", func(t *testing.T) {
		t.Parallel()
		r := &Runner{Generator: strategies.NewEMACross(2, 3)}
		_, err := r.Run(ctx, bars)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Sizer is required")
	})

	t.Run("unordered bars", func(t *testing.T) {
		t.Parallel()
		bad := barsFromCloses(1, 2, 3)
		bad[2].Time = bad[0].Time
		_, err := Run(ctx, bad, strategies.NewEMACross(2, 3), fixed(t, 1), Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bar 2")
	})

	t.Run("negative equity", func(t *testing.T) {
		t.Parallel()
		_, err := Run(ctx, bars, strategies.NewEMACross(2, 3), fixed(t, 1), Options{StartingEquity: -5})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "starting equity")
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Run(cctx, bars, strategies.NewEMACross(2, 3), fixed(t, 1), Options{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunner_StateErrorStopsRun(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), barsFromCloses(1, 2, 3), constGen{strategies.Long}, addWhileFlat{}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sim.ErrStateViolation))

	var se *sim.StateError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, sim.IntentAdd, se.Intent.Kind)
	assert.Contains(t, err.Error(), "bar 0")
}

func TestRunner_EmptySeries(t *testing.T) {
	t.Parallel()

	res, err := Run(context.Background(), nil, strategies.NewEMACross(9, 21), fixed(t, 2), Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Events)
	assert.Empty(t, res.Equity)
	assert.Equal(t, 1000.0, res.Summary.StartingEquity)
	assert.Equal(t, 1000.0, res.Summary.EndingEquity)
	assert.Equal(t, 0.0, res.Summary.WinRate)
}

func TestRunner_OneSamplePerBar(t *testing.T) {
	t.Parallel()

	bars := wave(200)
	res, err := Run(context.Background(), bars, strategies.NewEMACross(3, 8), fixed(t, 2), Options{})
	require.NoError(t, err)

	require.Len(t, res.Equity, len(bars))
	require.Len(t, res.Signals, len(bars))
	for i := range bars {
		assert.True(t, bars[i].Time.Equal(res.Equity[i].Time))
	}
	assert.Equal(t, "ema_cross(3/8)", res.Strategy)
	assert.Equal(t, "fixed(2)", res.Sizer)
	assert.Equal(t, bars.Start(), res.Start)
	assert.Equal(t, bars.End(), res.End)
}

func TestRunner_Idempotent(t *testing.T) {
	t.Parallel()

	bars := wave(300)
	gen := strategies.NewBollinger(20, 1.5, "", true)
	sizer := martingale(t)

	encode := func() ([]byte, []byte) {
		res, err := Run(context.Background(), bars, gen, sizer, Options{CloseAtEnd: true})
		require.NoError(t, err)
		ev, err := json.Marshal(res.Events)
		require.NoError(t, err)
		eq, err := json.Marshal(res.Equity)
		require.NoError(t, err)
		return ev, eq
	}

	ev1, eq1 := encode()
	ev2, eq2 := encode()
	assert.True(t, bytes.Equal(ev1, ev2), "trade log differs between runs")
	assert.True(t, bytes.Equal(eq1, eq2), "equity curve differs between runs")
}

func TestRunner_Conservation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		gen   strategies.Generator
		sizer risk.Sizer
	}{
		{"cross fixed", strategies.NewEMACross(3, 8), fixed(t, 2)},
		{"single fixed", strategies.NewEMASingle(9), fixed(t, 1.5)},
		{"bollinger martingale", strategies.NewBollinger(20, 1, "ema", false), martingale(t)},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			res, err := Run(context.Background(), wave(400), tc.gen, tc.sizer, Options{CloseAtEnd: true})
			require.NoError(t, err)
			s := res.Summary

			require.False(t, s.OpenAtEnd)
			require.NotEmpty(t, res.Trades)

			var sumTrades, sumEvents float64
			for _, tr := range res.Trades {
				sumTrades += tr.PL
			}
			for _, ev := range res.Events {
				sumEvents += ev.PL()
			}
			assert.InDelta(t, sumTrades, sumEvents, 1e-6)
			assert.InDelta(t, sumTrades, s.TotalPL, 1e-6)
			assert.InDelta(t, s.EndingEquity-s.StartingEquity, sumTrades, 1e-6)
			assert.Equal(t, len(res.Trades), s.ClosedTrades)
			assert.Equal(t, countKind(res.Events, sim.EventClose), s.ClosedTrades)

			assert.GreaterOrEqual(t, s.WinRate, 0.0)
			assert.LessOrEqual(t, s.WinRate, 1.0)

			for i, smp := range res.Equity {
				assert.InDelta(t, s.StartingEquity+smp.Realized+smp.Unrealized, smp.Equity, 1e-9, "bar %d", i)
			}
		})
	}
}

func TestRunner_DrawdownNonDecreasing(t *testing.T) {
	t.Parallel()

	res, err := Run(context.Background(), wave(300), strategies.NewEMACross(3, 8), fixed(t, 2), Options{})
	require.NoError(t, err)

	dd := Drawdowns(res.Summary.StartingEquity, res.Equity)
	require.Len(t, dd, len(res.Equity))
	for i := 1; i < len(dd); i++ {
		assert.GreaterOrEqual(t, dd[i], dd[i-1], "sample %d", i)
	}
	assert.Equal(t, res.Summary.MaxDrawdown, dd[len(dd)-1])

	prev := 0.0
	for n := 1; n <= len(res.Equity); n += 17 {
		s := Fold(res.Events, res.Equity[:n], res.Summary.StartingEquity)
		assert.GreaterOrEqual(t, s.MaxDrawdown, prev)
		prev = s.MaxDrawdown
	}
}

func TestRunner_FlipDiscipline(t *testing.T) {
	t.Parallel()

	res, err := Run(context.Background(), wave(400), strategies.NewEMACross(3, 8), fixed(t, 2), Options{})
	require.NoError(t, err)

	events := res.Events
	require.Greater(t, countKind(events, sim.EventClose), 2)
	assert.Zero(t, countKind(events, sim.EventAdd))

	for i, ev := range events {
		if ev.Kind != sim.EventClose {
			continue
		}
		require.Less(t, i+1, len(events), "close must be followed by open")
		next := events[i+1]
		assert.Equal(t, sim.EventOpen, next.Kind)
		assert.Equal(t, ev.Bar, next.Bar)
		assert.Equal(t, -ev.Side, next.Side)
		assert.Equal(t, 2.0, next.SizeDelta)
		assert.Equal(t, sim.Side(res.Signals[ev.Bar]), next.Side)
	}
}

func TestRunner_ConstantPriceSingleEMA(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 3333.3
	}
	res, err := Run(context.Background(), barsFromCloses(closes...), strategies.NewEMASingle(9), fixed(t, 2), Options{})
	require.NoError(t, err)

	assert.LessOrEqual(t, len(res.Trades), 1)
	assert.Empty(t, res.Events)
	for _, smp := range res.Equity {
		assert.Equal(t, 1000.0, smp.Equity)
	}
}

func TestRunner_RisingSeriesCrossover(t *testing.T) {
	t.Parallel()

	res, err := Run(context.Background(), barsFromCloses(1, 2, 3, 4, 5), strategies.NewEMACross(2, 3), fixed(t, 2), Options{})
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, sim.EventOpen, ev.Kind)
	assert.Equal(t, sim.Long, ev.Side)
	assert.Equal(t, 2, ev.Bar)
	assert.Equal(t, 3.0, ev.Price)
	assert.Zero(t, countKind(res.Events, sim.EventClose))

	s := res.Summary
	assert.Equal(t, 0, s.ClosedTrades)
	assert.True(t, s.OpenAtEnd)
	assert.InDelta(t, 1004.0, s.EndingEquity, 1e-9, "2 units marked from 3 to 5")
}

func TestRunner_MartingaleScenario(t *testing.T) {
	t.Parallel()

	bars := barsFromCloses(100, 90, 85, 105)
	res, err := Run(context.Background(), bars, constGen{strategies.Long}, martingale(t), Options{})
	require.NoError(t, err)

	var adds []float64
	for _, ev := range res.Events {
		if ev.Kind == sim.EventAdd {
			adds = append(adds, ev.SizeDelta)
		}
	}
	assert.Equal(t, []float64{13, 26}, adds)

	last := res.Events[len(res.Events)-1]
	assert.Equal(t, sim.EventClose, last.Kind)
	assert.Greater(t, last.PL(), 0.0)
	assert.InDelta(t, 780.0, res.Summary.TotalPL, 1e-9)
	assert.InDelta(t, 1780.0, res.Summary.EndingEquity, 1e-9)
	assert.Equal(t, 1, res.Summary.Wins)
	assert.Equal(t, NoLossProfitFactor, res.Summary.ProfitFactor)
}

func TestRunner_CloseAtEnd(t *testing.T) {
	t.Parallel()

	bars := barsFromCloses(1, 2, 3, 4, 5)

	var seen []sim.EventKind
	opts := Options{
		CloseAtEnd: true,
		Listener: sim.EventListenerFunc(func(ev sim.TradeEvent) {
			seen = append(seen, ev.Kind)
		}),
	}
	res, err := Run(context.Background(), bars, strategies.NewEMACross(2, 3), fixed(t, 2), opts)
	require.NoError(t, err)

	require.Len(t, res.Events, 2)
	cl := res.Events[1]
	assert.Equal(t, sim.EventClose, cl.Kind)
	assert.Equal(t, sim.ReasonSessionClose, cl.Reason)
	assert.Equal(t, 4, cl.Bar)
	assert.InDelta(t, 4.0, cl.PL(), 1e-12)
	assert.Equal(t, []sim.EventKind{sim.EventOpen, sim.EventClose}, seen)

	assert.False(t, res.Summary.OpenAtEnd)
	assert.InDelta(t, 1004.0, res.Summary.EndingEquity, 1e-9)
}
