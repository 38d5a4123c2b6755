package market

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV interval, typically a one-minute bar from a cleaned
// session. Bars are values; nothing in the simulator mutates them.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Finite reports whether every price and the volume are finite numbers.
func (b Bar) Finite() bool {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Bars is an ordered bar sequence.
type Bars []Bar

// Start returns the first bar time or the zero time for an empty series.
func (bs Bars) Start() time.Time {
	if len(bs) == 0 {
		return time.Time{}
	}
	return bs[0].Time
}

// End returns the last bar time or the zero time for an empty series.
func (bs Bars) End() time.Time {
	if len(bs) == 0 {
		return time.Time{}
	}
	return bs[len(bs)-1].Time
}

// Validate checks the ordering contract the engine relies on: strictly
// increasing timestamps and finite close prices.
func (bs Bars) Validate() error {
	for i, b := range bs {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			return fmt.Errorf("bar %d (%s): non-finite close", i, b.Time.Format(time.RFC3339))
		}
		if i > 0 && !b.Time.After(bs[i-1].Time) {
			return fmt.Errorf("bar %d (%s): timestamp not after previous bar (%s)",
				i, b.Time.Format(time.RFC3339), bs[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}
