package risk

import (
	"fmt"
	"math"

	"github.com/rustyeddy/intraday/market"
	"github.com/rustyeddy/intraday/sim"
	"github.com/rustyeddy/intraday/strategies"
)

// MartingaleConfig scales into losing positions.
//
// Step and TakeProfit are price distances from the average entry.
type MartingaleConfig struct {
	BaseLot        float64 `json:"base_lot" yaml:"base_lot"`
	Multiplier     float64 `json:"multiplier" yaml:"multiplier"`
	Step           float64 `json:"step" yaml:"step"`
	TakeProfit     float64 `json:"take_profit" yaml:"take_profit"`
	ReverseSignals bool    `json:"reverse_signals" yaml:"reverse_signals"`
	CloseOnFlip    bool    `json:"close_on_flip" yaml:"close_on_flip"`
}

func DefaultMartingaleConfig() MartingaleConfig {
	return MartingaleConfig{
		BaseLot:        13,
		Multiplier:     2,
		Step:           10,
		TakeProfit:     15,
		ReverseSignals: true,
		CloseOnFlip:    false,
	}
}

func (c MartingaleConfig) Validate() error {
	checks := []struct {
		name string
		v    float64
	}{
		{"base_lot", c.BaseLot},
		{"multiplier", c.Multiplier},
		{"step", c.Step},
		{"take_profit", c.TakeProfit},
	}
	for _, ck := range checks {
		if !(ck.v > 0) || math.IsInf(ck.v, 0) {
			return fmt.Errorf("martingale: %s must be positive, got %v", ck.name, ck.v)
		}
	}
	return nil
}

// Martingale opens base_lot on a signal, adds on every adverse move of
// Step from the average entry and closes once price is TakeProfit in
// favour of the average entry. The first add is base_lot and each later
// add is the previous add times Multiplier.
//
// Checks run in order, and the first that fires wins the bar: take-profit,
// add, then flip. With CloseOnFlip unset a flip is ignored while the
// position is in drawdown.
type Martingale struct {
	cfg MartingaleConfig

	// inDrawdown is the mark-to-market state at the last bar seen with an
	// open position.
	inDrawdown bool
}

func NewMartingale(c MartingaleConfig) (*Martingale, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Martingale{cfg: c}, nil
}

func (m *Martingale) Config() MartingaleConfig { return m.cfg }

func (m *Martingale) Name() string {
	c := m.cfg
	name := fmt.Sprintf("martingale(%g x%g step=%g tp=%g)", c.BaseLot, c.Multiplier, c.Step, c.TakeProfit)
	if c.ReverseSignals {
		name += "+reverse"
	}
	if c.CloseOnFlip {
		name += "+close_on_flip"
	}
	return name
}

func (m *Martingale) Reset() { m.inDrawdown = false }

// InDrawdown reports whether the position was under water at the last bar.
func (m *Martingale) InDrawdown() bool { return m.inDrawdown }

// NextAddSize is the size of the add that would follow pos's adds so far.
func (m *Martingale) NextAddSize(pos sim.Position) float64 {
	if pos.Adds == 0 || pos.LastAddSize <= 0 {
		return m.cfg.BaseLot
	}
	return pos.LastAddSize * m.cfg.Multiplier
}

func (m *Martingale) Next(pos sim.Position, sig strategies.Signal, b market.Bar) []sim.Intent {
	if m.cfg.ReverseSignals {
		sig = sig.Opposite()
	}
	want := sideOf(sig)

	if pos.IsFlat() {
		m.inDrawdown = false
		if want == sim.Flat {
			return nil
		}
		return []sim.Intent{sim.OpenIntent(want, m.cfg.BaseLot, sim.ReasonSignal)}
	}

	exc := pos.Excursion(b.Close)
	m.inDrawdown = exc < 0

	if exc >= m.cfg.TakeProfit {
		m.inDrawdown = false
		return []sim.Intent{sim.CloseIntent(sim.ReasonTakeProfit)}
	}
	if -exc >= m.cfg.Step {
		return []sim.Intent{sim.AddIntent(m.NextAddSize(pos), sim.ReasonAdd)}
	}
	if want != sim.Flat && want != pos.Side {
		if m.cfg.CloseOnFlip || !m.inDrawdown {
			m.inDrawdown = false
			return flip(want, m.cfg.BaseLot)
		}
	}
	return nil
}
