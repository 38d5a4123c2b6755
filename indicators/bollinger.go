package indicators

import (
	"fmt"

	"github.com/rustyeddy/intraday/market"
)

// MiddleKind selects the moving average used for the middle band.
type MiddleKind string

const (
	MiddleSMA MiddleKind = "sma"
	MiddleEMA MiddleKind = "ema"
)

// Bands is one Bollinger reading.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger computes middle ± k·σ where σ is the population standard
// deviation of the last period closes and middle is an SMA or EMA of the
// same period.
type Bollinger struct {
	n      int
	k      float64
	middle MiddleKind

	sd  *StdDev
	sma *SMA
	ema *EMA
}

func NewBollinger(period int, k float64, middle MiddleKind) *Bollinger {
	if period <= 0 {
		panic("Bollinger period must be > 0")
	}
	if middle == "" {
		middle = MiddleSMA
	}
	b := &Bollinger{n: period, k: k, middle: middle, sd: NewStdDev(period)}
	if middle == MiddleEMA {
		b.ema = NewEMA(period)
	} else {
		b.sma = NewSMA(period)
	}
	return b
}

func (b *Bollinger) Name() string {
	return fmt.Sprintf("BB(%d,%g,%s)", b.n, b.k, b.middle)
}

func (b *Bollinger) Warmup() int { return b.n }
func (b *Bollinger) Ready() bool { return b.sd.Ready() }

func (b *Bollinger) Reset() {
	b.sd.Reset()
	b.mid().Reset()
}

func (b *Bollinger) Update(bar market.Bar) { b.Add(bar.Close) }

func (b *Bollinger) Add(x float64) {
	b.sd.Add(x)
	b.mid().Add(x)
}

// Bands returns the current bands; zero until Ready.
func (b *Bollinger) Bands() Bands {
	if !b.Ready() {
		return Bands{}
	}
	mid := b.mid().Value()
	sd := b.sd.Value()
	return Bands{
		Upper:  mid + b.k*sd,
		Middle: mid,
		Lower:  mid - b.k*sd,
	}
}

// Value returns the middle band.
func (b *Bollinger) Value() float64 { return b.Bands().Middle }

type middleBand interface {
	Add(x float64)
	Reset()
	Value() float64
}

func (b *Bollinger) mid() middleBand {
	if b.ema != nil {
		return b.ema
	}
	return b.sma
}
