package sim

import "time"

// Position is the single open-position record. Only the Engine mutates it;
// callers get copies.
//
// Size is zero exactly when Side is Flat. Positions only close in full, so
// an open position never carries booked P&L: the close books it on the
// Engine (see Engine.Realized) and resets the position to the zero value.
type Position struct {
	Side      Side
	Size      float64
	AvgEntry  float64
	EntryTime time.Time

	// Adds counts add fills since the open; LastAddSize is the size of the
	// most recent add (0 before the first add).
	Adds        int
	LastAddSize float64
}

// IsFlat reports whether no position is open.
func (p Position) IsFlat() bool { return p.Side == Flat }

// Unrealized marks the position at price.
func (p Position) Unrealized(price float64) float64 { return UnrealizedPL(p, price) }

// Excursion is how far price has moved in the position's favour from the
// average entry (negative when adverse). Flat positions return 0.
func (p Position) Excursion(price float64) float64 {
	if p.IsFlat() {
		return 0
	}
	return (price - p.AvgEntry) * p.Side.Sign()
}
