package indicators

import (
	"fmt"

	"github.com/rustyeddy/intraday/market"
)

// EMA computes an Exponential Moving Average over bar closes.
//
// The first close seeds the average; every later close applies
//
//	ema = alpha*close + (1-alpha)*ema,  alpha = 2/(period+1)
//
// The value exists from the first update but Ready() only turns true once
// period closes have been seen.
type EMA struct {
	n     int
	alpha float64

	seen  int
	value float64

	name string
}

// NewEMA panics on a non-positive period; callers validate configuration
// before building indicators.
func NewEMA(period int) *EMA {
	if period <= 0 {
		panic("EMA period must be > 0")
	}
	return &EMA{
		n:     period,
		alpha: 2.0 / float64(period+1),
		name:  fmt.Sprintf("EMA(%d)", period),
	}
}

func (e *EMA) Name() string   { return e.name }
func (e *EMA) Warmup() int    { return e.n }
func (e *EMA) Ready() bool    { return e.seen >= e.n }
func (e *EMA) Value() float64 { return e.value }

func (e *EMA) Reset() {
	e.seen = 0
	e.value = 0
}

func (e *EMA) Update(b market.Bar) {
	e.Add(b.Close)
}

// Add feeds a raw value.
func (e *EMA) Add(x float64) {
	e.seen++
	if e.seen == 1 {
		e.value = x
		return
	}
	e.value = e.alpha*x + (1.0-e.alpha)*e.value
}
