// Package risk decides order size and direction. A Sizer looks at the open
// position, the bar's signal and the bar itself and returns the intents the
// engine should execute on that bar.
package risk

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/intraday/market"
	"github.com/rustyeddy/intraday/sim"
	"github.com/rustyeddy/intraday/strategies"
)

// Sizer turns a signal into order intents.
//
// Next returns nil for "do nothing", a single intent, or a close followed
// by an open when the position flips. Intents are applied in order at the
// bar's close.
type Sizer interface {
	Name() string
	Reset()
	Next(pos sim.Position, sig strategies.Signal, b market.Bar) []sim.Intent
}

// Kind names a sizer variant.
type Kind string

const (
	KindFixed      Kind = "fixed"
	KindMartingale Kind = "martingale"
)

func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fixed", "flip", "default":
		return KindFixed, nil
	case "martingale", "mart":
		return KindMartingale, nil
	default:
		return "", fmt.Errorf("unknown sizer %q (supported: fixed, martingale)", name)
	}
}

// Config selects one sizer. Only the block matching Kind is read.
type Config struct {
	Kind       Kind             `json:"kind" yaml:"kind"`
	Fixed      FixedConfig      `json:"fixed" yaml:"fixed"`
	Martingale MartingaleConfig `json:"martingale" yaml:"martingale"`
}

// DefaultConfig is a fixed size of 2 units with the martingale block
// pre-filled.
func DefaultConfig() Config {
	return Config{
		Kind:       KindFixed,
		Fixed:      FixedConfig{Size: 2},
		Martingale: DefaultMartingaleConfig(),
	}
}

func (c Config) Validate() error {
	switch c.Kind {
	case KindFixed:
		return c.Fixed.Validate()
	case KindMartingale:
		return c.Martingale.Validate()
	case "":
		return fmt.Errorf("sizer kind is required")
	default:
		return fmt.Errorf("unknown sizer kind %q", c.Kind)
	}
}

// New validates c and builds the matching sizer.
func New(c Config) (Sizer, error) {
	switch c.Kind {
	case KindFixed:
		return NewFixed(c.Fixed)
	case KindMartingale:
		return NewMartingale(c.Martingale)
	default:
		return nil, c.Validate()
	}
}

// sideOf maps a signal onto the position side it asks for.
func sideOf(s strategies.Signal) sim.Side {
	switch s {
	case strategies.Long:
		return sim.Long
	case strategies.Short:
		return sim.Short
	default:
		return sim.Flat
	}
}

func flip(to sim.Side, size float64) []sim.Intent {
	return []sim.Intent{
		sim.CloseIntent(sim.ReasonFlip),
		sim.OpenIntent(to, size, sim.ReasonFlip),
	}
}
