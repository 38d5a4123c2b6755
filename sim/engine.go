// Package sim is the single-instrument execution engine: it applies order
// intents at bar closes, keeps the one open position, books realized P&L
// and records the trade log and equity curve.
package sim

import (
	"math"
	"time"

	"github.com/rustyeddy/intraday/market"
)

// EventListener is notified after every trade event is appended.
type EventListener interface {
	OnTradeEvent(ev TradeEvent)
}

// EventListenerFunc adapts a function to EventListener.
type EventListenerFunc func(ev TradeEvent)

func (f EventListenerFunc) OnTradeEvent(ev TradeEvent) { f(ev) }

// Engine is not safe for concurrent use. A run drives it from one
// goroutine, one bar at a time.
type Engine struct {
	starting float64
	realized float64

	pos    Position
	events []TradeEvent
	trades []ClosedTrade
	equity []EquitySample

	bar      int
	listener EventListener
}

func NewEngine(startingEquity float64) *Engine {
	return &Engine{starting: startingEquity, bar: -1}
}

// SetListener installs an optional event listener (nil removes it).
func (e *Engine) SetListener(l EventListener) { e.listener = l }

func (e *Engine) StartingEquity() float64 { return e.starting }

// Realized is the total realized P&L booked so far.
func (e *Engine) Realized() float64 { return e.realized }

// Position returns a copy of the open position.
func (e *Engine) Position() Position { return e.pos }

// Events returns the trade log in arrival order.
func (e *Engine) Events() []TradeEvent { return e.events }

// Trades returns one ClosedTrade per completed lifecycle.
func (e *Engine) Trades() []ClosedTrade { return e.trades }

// Equity returns one sample per marked bar.
func (e *Engine) Equity() []EquitySample { return e.equity }

// EquityAt is the account value marked at price.
func (e *Engine) EquityAt(price float64) float64 {
	return e.starting + e.realized + e.pos.Unrealized(price)
}

// Apply executes one intent at the bar's close price.
//
// Intents that do not fit the current position (open while already open,
// add or close while flat, non-positive sizes) return a *StateError and
// leave the engine unchanged.
func (e *Engine) Apply(idx int, b market.Bar, in Intent) error {
	e.bar = idx
	switch in.Kind {
	case IntentNone:
		return nil
	case IntentOpen:
		return e.open(b, in)
	case IntentAdd:
		return e.add(b, in)
	case IntentClose:
		if e.pos.IsFlat() {
			return &StateError{Intent: in, Side: e.pos.Side}
		}
		e.close(b.Time, b.Close, in.Reason)
		return nil
	default:
		return &StateError{Intent: in, Side: e.pos.Side, Detail: "unknown intent"}
	}
}

// Mark appends the bar's equity sample and returns it. Call it once per
// bar after that bar's intents have been applied.
func (e *Engine) Mark(b market.Bar) EquitySample {
	u := e.pos.Unrealized(b.Close)
	s := EquitySample{
		Time:       b.Time,
		Equity:     e.starting + e.realized + u,
		Realized:   e.realized,
		Unrealized: u,
	}
	e.equity = append(e.equity, s)
	return s
}

func (e *Engine) open(b market.Bar, in Intent) error {
	if !e.pos.IsFlat() {
		return &StateError{Intent: in, Side: e.pos.Side, Detail: "position already open"}
	}
	if in.Side != Long && in.Side != Short {
		return &StateError{Intent: in, Side: e.pos.Side, Detail: "open needs long or short"}
	}
	if !validSize(in.Size) {
		return &StateError{Intent: in, Side: e.pos.Side, Detail: "size must be positive"}
	}

	e.pos = Position{
		Side:      in.Side,
		Size:      in.Size,
		AvgEntry:  b.Close,
		EntryTime: b.Time,
	}
	e.emit(TradeEvent{
		Kind:         EventOpen,
		Time:         b.Time,
		Side:         in.Side,
		Price:        b.Close,
		SizeDelta:    in.Size,
		PositionSize: in.Size,
		AvgEntry:     b.Close,
		Reason:       in.Reason,
	})
	return nil
}

func (e *Engine) add(b market.Bar, in Intent) error {
	if e.pos.IsFlat() {
		return &StateError{Intent: in, Side: e.pos.Side}
	}
	if !validSize(in.Size) {
		return &StateError{Intent: in, Side: e.pos.Side, Detail: "size must be positive"}
	}

	p := &e.pos
	p.AvgEntry = weightedEntry(p.AvgEntry, p.Size, b.Close, in.Size)
	p.Size += in.Size
	p.Adds++
	p.LastAddSize = in.Size

	e.emit(TradeEvent{
		Kind:         EventAdd,
		Time:         b.Time,
		Side:         p.Side,
		Price:        b.Close,
		SizeDelta:    in.Size,
		PositionSize: p.Size,
		AvgEntry:     p.AvgEntry,
		Reason:       in.Reason,
	})
	return nil
}

// close books the position at price and resets it to flat. A zero-size
// position is left alone.
func (e *Engine) close(t time.Time, price float64, reason string) {
	p := e.pos
	if p.Size == 0 {
		e.pos = Position{}
		return
	}

	pl := RealizedPL(p.Side, p.AvgEntry, price, p.Size)
	e.realized += pl
	e.pos = Position{}

	e.trades = append(e.trades, ClosedTrade{
		Side:       p.Side,
		EntryTime:  p.EntryTime,
		EntryPrice: p.AvgEntry,
		ExitTime:   t,
		ExitPrice:  price,
		Size:       p.Size,
		Adds:       p.Adds,
		PL:         pl,
		Reason:     reason,
	})
	e.emit(TradeEvent{
		Kind:         EventClose,
		Time:         t,
		Side:         p.Side,
		Price:        price,
		SizeDelta:    p.Size,
		PositionSize: 0,
		AvgEntry:     p.AvgEntry,
		RealizedPL:   &pl,
		Reason:       reason,
	})
}

func (e *Engine) emit(ev TradeEvent) {
	ev.Seq = len(e.events) + 1
	ev.Bar = e.bar
	e.events = append(e.events, ev)
	if e.listener != nil {
		e.listener.OnTradeEvent(ev)
	}
}

func validSize(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}
