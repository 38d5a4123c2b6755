package strategies

import (
	"fmt"

	"github.com/rustyeddy/intraday/indicators"
	"github.com/rustyeddy/intraday/market"
)

// Bollinger fades band breaks: Long below the lower band, Short above the
// upper band. Inside the bands it is Flat, or with HoldMid it repeats the
// last non-Flat signal.
type Bollinger struct {
	Window  int
	K       float64
	Middle  indicators.MiddleKind
	HoldMid bool

	bb   *indicators.Bollinger
	last Signal // last non-Flat signal, carried for HoldMid
}

func NewBollinger(window int, k float64, middle indicators.MiddleKind, holdMid bool) *Bollinger {
	if middle == "" {
		middle = indicators.MiddleSMA
	}
	return &Bollinger{
		Window:  window,
		K:       k,
		Middle:  middle,
		HoldMid: holdMid,
		bb:      indicators.NewBollinger(window, k, middle),
	}
}

func (s *Bollinger) Name() string {
	name := fmt.Sprintf("bollinger(%d,%g,%s)", s.Window, s.K, s.Middle)
	if s.HoldMid {
		name += "+hold"
	}
	return name
}

func (s *Bollinger) Reset() {
	s.bb.Reset()
	s.last = Flat
}

func (s *Bollinger) Next(b market.Bar) Signal {
	s.bb.Update(b)
	if !s.bb.Ready() {
		return Flat
	}

	bands := s.bb.Bands()
	sig := Flat
	switch {
	case b.Close < bands.Lower:
		sig = Long
	case b.Close > bands.Upper:
		sig = Short
	}

	if sig != Flat {
		s.last = sig
		return sig
	}
	if s.HoldMid {
		return s.last
	}
	return Flat
}
