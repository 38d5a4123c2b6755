package sim

import "time"

// EventKind tags a TradeEvent.
type EventKind string

const (
	EventOpen  EventKind = "open"
	EventAdd   EventKind = "add"
	EventClose EventKind = "close"
)

// TradeEvent is one append-only entry in the trade log.
type TradeEvent struct {
	Seq  int // 1-based position in the log
	Bar  int // index of the bar that produced it
	Kind EventKind
	Time time.Time

	Side         Side
	Price        float64
	SizeDelta    float64 // size filled by this event
	PositionSize float64 // size after the event (0 after a close)
	AvgEntry     float64 // average entry after the event (entry being closed for a close)

	// RealizedPL is set only on close events.
	RealizedPL *float64

	Reason string
}

// PL returns the realized P&L, 0 for non-close events.
func (ev TradeEvent) PL() float64 {
	if ev.RealizedPL == nil {
		return 0
	}
	return *ev.RealizedPL
}

// ClosedTrade summarizes one open → close lifecycle.
type ClosedTrade struct {
	Side       Side
	EntryTime  time.Time
	EntryPrice float64 // average entry at close
	ExitTime   time.Time
	ExitPrice  float64
	Size       float64 // total size closed
	Adds       int
	PL         float64
	Reason     string // reason of the closing event
}

// Win reports whether the trade made money.
func (t ClosedTrade) Win() bool { return t.PL > 0 }

// EquitySample is the marked-to-market account value at a bar close.
type EquitySample struct {
	Time       time.Time
	Equity     float64
	Realized   float64 // realized P&L to date
	Unrealized float64
}
