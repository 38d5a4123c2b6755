// Package strategies turns a bar series into one Signal per bar.
package strategies

import (
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/intraday/indicators"
	"github.com/rustyeddy/intraday/market"
)

// Generator emits one Signal per bar. Implementations only look at bars
// already seen, so the signal for bar i never depends on bar i+1.
type Generator interface {
	Name() string

	// Reset clears indicator windows and carried state.
	Reset()

	// Next consumes the next bar and returns its signal.
	Next(b market.Bar) Signal
}

// Generate resets g and returns one signal per bar, in bar order.
func Generate(g Generator, bars market.Bars) []Signal {
	g.Reset()
	out := make([]Signal, len(bars))
	for i, b := range bars {
		out[i] = g.Next(b)
	}
	return out
}

// Kind names a signal generator variant.
type Kind string

const (
	KindEMASingle Kind = "ema_single"
	KindEMACross  Kind = "ema_cross"
	KindBollinger Kind = "bollinger"
)

// ParseKind accepts the canonical names plus a few aliases.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ema_single", "ema-single", "single", "ema9":
		return KindEMASingle, nil
	case "ema_cross", "ema-cross", "emacross", "ema", "crossover":
		return KindEMACross, nil
	case "bollinger", "bb", "bands":
		return KindBollinger, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (supported: ema_single, ema_cross, bollinger)", name)
	}
}

// EMASingleParams configures the close-versus-EMA generator.
type EMASingleParams struct {
	Window int `json:"window" yaml:"window"`
}

// EMACrossParams configures the two-EMA crossover generator.
type EMACrossParams struct {
	Short int `json:"short" yaml:"short"`
	Long  int `json:"long" yaml:"long"`
}

// BollingerParams configures the band mean-reversion generator.
type BollingerParams struct {
	Window  int                   `json:"window" yaml:"window"`
	K       float64               `json:"k" yaml:"k"`
	Middle  indicators.MiddleKind `json:"middle" yaml:"middle"`
	HoldMid bool                  `json:"hold_mid" yaml:"hold_mid"`
}

// Config selects exactly one generator variant. Only the params block
// matching Kind is read.
type Config struct {
	Kind      Kind            `json:"kind" yaml:"kind"`
	EMASingle EMASingleParams `json:"ema_single" yaml:"ema_single"`
	EMACross  EMACrossParams  `json:"ema_cross" yaml:"ema_cross"`
	Bollinger BollingerParams `json:"bollinger" yaml:"bollinger"`
}

// DefaultConfig returns the 9/21 crossover.
func DefaultConfig() Config {
	return Config{
		Kind:      KindEMACross,
		EMASingle: EMASingleParams{Window: 9},
		EMACross:  EMACrossParams{Short: 9, Long: 21},
		Bollinger: BollingerParams{Window: 20, K: 2, Middle: indicators.MiddleSMA},
	}
}

// Validate rejects parameter combinations the generators cannot run with.
func (c Config) Validate() error {
	switch c.Kind {
	case KindEMASingle:
		if c.EMASingle.Window <= 0 {
			return fmt.Errorf("ema_single: window must be positive, got %d", c.EMASingle.Window)
		}
	case KindEMACross:
		p := c.EMACross
		if p.Short <= 0 || p.Long <= 0 {
			return fmt.Errorf("ema_cross: windows must be positive, got %d/%d", p.Short, p.Long)
		}
		if p.Short >= p.Long {
			return fmt.Errorf("ema_cross: require short < long, got %d/%d", p.Short, p.Long)
		}
	case KindBollinger:
		p := c.Bollinger
		if p.Window <= 0 {
			return fmt.Errorf("bollinger: window must be positive, got %d", p.Window)
		}
		if !(p.K > 0) || math.IsInf(p.K, 0) {
			return fmt.Errorf("bollinger: k must be positive and finite, got %v", p.K)
		}
		switch p.Middle {
		case "", indicators.MiddleSMA, indicators.MiddleEMA:
		default:
			return fmt.Errorf("bollinger: middle must be sma or ema, got %q", p.Middle)
		}
	case "":
		return fmt.Errorf("strategy kind is required")
	default:
		return fmt.Errorf("unknown strategy kind %q", c.Kind)
	}
	return nil
}

// New validates c and builds the matching generator.
func New(c Config) (Generator, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Kind {
	case KindEMASingle:
		return NewEMASingle(c.EMASingle.Window), nil
	case KindEMACross:
		return NewEMACross(c.EMACross.Short, c.EMACross.Long), nil
	default:
		p := c.Bollinger
		return NewBollinger(p.Window, p.K, p.Middle, p.HoldMid), nil
	}
}
