// Package indicators provides streaming technical indicators over bar closes.
package indicators

import "github.com/rustyeddy/intraday/market"

// Indicator computes a single streaming value from bars.
// It is deterministic: the same bar sequence always yields the same values.
type Indicator interface {
	// Name returns a stable identifier like "EMA(9)" or "BB(20,2)".
	Name() string

	// Warmup returns how many updates are needed before Ready() is true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed bar.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool
}

// ValueF64 is implemented by single-line indicators.
type ValueF64 interface {
	// Value returns the current indicator value. Callers should check
	// Ready() first; before warmup the value is whatever has accumulated.
	Value() float64
}
