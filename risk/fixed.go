package risk

import (
	"fmt"
	"math"

	"github.com/rustyeddy/intraday/market"
	"github.com/rustyeddy/intraday/sim"
	"github.com/rustyeddy/intraday/strategies"
)

// FixedConfig is the plain always-in-the-market sizer.
type FixedConfig struct {
	Size float64 `json:"size" yaml:"size"`
}

func (c FixedConfig) Validate() error {
	if !(c.Size > 0) || math.IsInf(c.Size, 0) {
		return fmt.Errorf("fixed: size must be positive, got %v", c.Size)
	}
	return nil
}

// Fixed opens on the first directional signal, ignores repeats and Flat,
// and flips (close then open) on an opposite signal. Every open uses the
// same size.
type Fixed struct {
	size float64
}

func NewFixed(c FixedConfig) (*Fixed, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Fixed{size: c.Size}, nil
}

func (f *Fixed) Name() string { return fmt.Sprintf("fixed(%g)", f.size) }

func (f *Fixed) Reset() {}

func (f *Fixed) Next(pos sim.Position, sig strategies.Signal, _ market.Bar) []sim.Intent {
	want := sideOf(sig)
	switch {
	case want == sim.Flat, want == pos.Side:
		return nil
	case pos.IsFlat():
		return []sim.Intent{sim.OpenIntent(want, f.size, sim.ReasonSignal)}
	default:
		return flip(want, f.size)
	}
}
