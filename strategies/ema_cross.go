package strategies

import (
	"fmt"

	"github.com/rustyeddy/intraday/indicators"
	"github.com/rustyeddy/intraday/market"
)

// EMACross is Long while the short EMA is above the long EMA and Short
// while it is below. It stays Flat until both EMAs are warmed up.
type EMACross struct {
	ShortPeriod int
	LongPeriod  int

	short *indicators.EMA
	long  *indicators.EMA
}

func NewEMACross(short, long int) *EMACross {
	return &EMACross{
		ShortPeriod: short,
		LongPeriod:  long,
		short:       indicators.NewEMA(short),
		long:        indicators.NewEMA(long),
	}
}

func (s *EMACross) Name() string {
	return fmt.Sprintf("ema_cross(%d/%d)", s.ShortPeriod, s.LongPeriod)
}

func (s *EMACross) Reset() {
	s.short.Reset()
	s.long.Reset()
}

func (s *EMACross) Next(b market.Bar) Signal {
	s.short.Update(b)
	s.long.Update(b)

	// Wait until both EMAs are warmed up.
	if !s.short.Ready() || !s.long.Ready() {
		return Flat
	}
	return compare(s.short.Value(), s.long.Value())
}
