// Package backtest runs a signal generator and a sizer over a bar series
// through the execution engine and folds the outcome into a Summary.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/intraday/internal/logging"
	"github.com/rustyeddy/intraday/market"
	"github.com/rustyeddy/intraday/risk"
	"github.com/rustyeddy/intraday/sim"
	"github.com/rustyeddy/intraday/strategies"
)

// DefaultStartingEquity is used when Options.StartingEquity is zero.
const DefaultStartingEquity = 1000.0

// Options controls how the runner behaves.
type Options struct {
	StartingEquity float64

	// CloseAtEnd closes a position still open on the final bar, at that
	// bar's close, with reason session_close.
	CloseAtEnd bool

	// Listener, if set, sees every trade event as it is emitted.
	Listener sim.EventListener

	// Logger gets a debug line per trade event and an info line at the
	// start and end of the run. Nil is silent.
	Logger *zerolog.Logger
}

// Runner drives the engine one bar at a time:
//  1. generator.Next(bar) -> signal
//  2. sizer.Next(position, signal, bar) -> intents
//  3. engine.Apply(intent) for each intent, at the bar's close
//  4. engine.Mark(bar)
type Runner struct {
	Generator strategies.Generator
	Sizer     risk.Sizer
	Options   Options
}

// Result is everything a run produced.
type Result struct {
	Strategy string
	Sizer    string
	Start    time.Time
	End      time.Time
	Bars     int

	Signals []strategies.Signal
	Events  []sim.TradeEvent
	Trades  []sim.ClosedTrade
	Equity  []sim.EquitySample
	Summary Summary
}

// Run executes the backtest over bars. Bars must be strictly increasing in
// time with finite closes; market.Clean produces such a series.
//
// An intent the engine rejects stops the run and the returned error wraps
// the *sim.StateError with the bar it happened on.
func (r *Runner) Run(ctx context.Context, bars market.Bars) (*Result, error) {
	if r.Generator == nil {
		return nil, fmt.Errorf("backtest: Generator is required")
	}
	if r.Sizer == nil {
		return nil, fmt.Errorf("backtest: Sizer is required")
	}
	if err := bars.Validate(); err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	opts := r.Options
	if opts.StartingEquity == 0 {
		opts.StartingEquity = DefaultStartingEquity
	}
	if !(opts.StartingEquity > 0) {
		return nil, fmt.Errorf("backtest: starting equity must be positive, got %v", opts.StartingEquity)
	}
	log := logging.OrDiscard(opts.Logger)

	r.Generator.Reset()
	r.Sizer.Reset()

	eng := sim.NewEngine(opts.StartingEquity)
	eng.SetListener(sim.EventListenerFunc(func(ev sim.TradeEvent) {
		log.Debug().
			Int("seq", ev.Seq).
			Str("kind", string(ev.Kind)).
			Stringer("side", ev.Side).
			Float64("price", ev.Price).
			Float64("size", ev.SizeDelta).
			Float64("position", ev.PositionSize).
			Str("reason", ev.Reason).
			Msg("trade event")
		if opts.Listener != nil {
			opts.Listener.OnTradeEvent(ev)
		}
	}))

	log.Info().
		Str("strategy", r.Generator.Name()).
		Str("sizer", r.Sizer.Name()).
		Int("bars", len(bars)).
		Float64("starting_equity", opts.StartingEquity).
		Msg("backtest start")

	signals := make([]strategies.Signal, len(bars))
	last := len(bars) - 1

	for i, b := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sig := r.Generator.Next(b)
		signals[i] = sig

		for _, in := range r.Sizer.Next(eng.Position(), sig, b) {
			if err := eng.Apply(i, b, in); err != nil {
				return nil, fmt.Errorf("backtest: bar %d (%s): %w", i, b.Time.Format(time.RFC3339), err)
			}
		}

		if i == last && opts.CloseAtEnd && !eng.Position().IsFlat() {
			if err := eng.Apply(i, b, sim.CloseIntent(sim.ReasonSessionClose)); err != nil {
				return nil, fmt.Errorf("backtest: session close: %w", err)
			}
		}

		eng.Mark(b)
	}

	res := &Result{
		Strategy: r.Generator.Name(),
		Sizer:    r.Sizer.Name(),
		Start:    bars.Start(),
		End:      bars.End(),
		Bars:     len(bars),
		Signals:  signals,
		Events:   eng.Events(),
		Trades:   eng.Trades(),
		Equity:   eng.Equity(),
	}
	res.Summary = Fold(res.Events, res.Equity, opts.StartingEquity)

	log.Info().
		Int("trades", res.Summary.ClosedTrades).
		Float64("total_pl", res.Summary.TotalPL).
		Float64("ending_equity", res.Summary.EndingEquity).
		Float64("max_drawdown", res.Summary.MaxDrawdown).
		Msg("backtest done")
	return res, nil
}

// Run is shorthand for a Runner with the given parts.
func Run(ctx context.Context, bars market.Bars, gen strategies.Generator, sizer risk.Sizer, opts Options) (*Result, error) {
	r := &Runner{Generator: gen, Sizer: sizer, Options: opts}
	return r.Run(ctx, bars)
}
