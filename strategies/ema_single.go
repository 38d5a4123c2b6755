package strategies

import (
	"fmt"

	"github.com/rustyeddy/intraday/indicators"
	"github.com/rustyeddy/intraday/market"
)

// EMASingle is Long while the close is above its EMA and Short while it is
// below. Bars before the EMA has seen Window closes are Flat.
type EMASingle struct {
	Window int

	ema *indicators.EMA
}

func NewEMASingle(window int) *EMASingle {
	return &EMASingle{
		Window: window,
		ema:    indicators.NewEMA(window),
	}
}

func (s *EMASingle) Name() string { return fmt.Sprintf("ema_single(%d)", s.Window) }

func (s *EMASingle) Reset() { s.ema.Reset() }

func (s *EMASingle) Next(b market.Bar) Signal {
	s.ema.Update(b)
	if !s.ema.Ready() {
		return Flat
	}
	return compare(b.Close, s.ema.Value())
}
