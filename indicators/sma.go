package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/intraday/market"
)

// window is a fixed-size ring of the most recent values.
type window struct {
	buf  []float64
	next int
	full bool
}

func newWindow(n int) window {
	return window{buf: make([]float64, n)}
}

func (w *window) add(x float64) {
	w.buf[w.next] = x
	w.next++
	if w.next == len(w.buf) {
		w.next = 0
		w.full = true
	}
}

func (w *window) len() int {
	if w.full {
		return len(w.buf)
	}
	return w.next
}

func (w *window) reset() {
	for i := range w.buf {
		w.buf[i] = 0
	}
	w.next = 0
	w.full = false
}

func (w *window) mean() float64 {
	n := w.len()
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += w.buf[i]
	}
	return sum / float64(n)
}

// stddev is the population standard deviation around mean.
func (w *window) stddev(mean float64) float64 {
	n := w.len()
	if n == 0 {
		return 0
	}
	ss := 0.0
	for i := 0; i < n; i++ {
		d := w.buf[i] - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}

// SMA is a streaming Simple Moving Average over bar closes.
type SMA struct {
	n int
	w window
}

func NewSMA(period int) *SMA {
	if period <= 0 {
		panic("SMA period must be > 0")
	}
	return &SMA{n: period, w: newWindow(period)}
}

func (s *SMA) Name() string        { return fmt.Sprintf("SMA(%d)", s.n) }
func (s *SMA) Warmup() int         { return s.n }
func (s *SMA) Ready() bool         { return s.w.full }
func (s *SMA) Reset()              { s.w.reset() }
func (s *SMA) Update(b market.Bar) { s.Add(b.Close) }
func (s *SMA) Add(x float64)       { s.w.add(x) }

// Value returns 0 until the window is full.
func (s *SMA) Value() float64 {
	if !s.Ready() {
		return 0
	}
	return s.w.mean()
}

// StdDev is a streaming population standard deviation over the last n
// closes.
type StdDev struct {
	n int
	w window
}

func NewStdDev(period int) *StdDev {
	if period <= 0 {
		panic("StdDev period must be > 0")
	}
	return &StdDev{n: period, w: newWindow(period)}
}

func (s *StdDev) Name() string        { return fmt.Sprintf("STDEV(%d)", s.n) }
func (s *StdDev) Warmup() int         { return s.n }
func (s *StdDev) Ready() bool         { return s.w.full }
func (s *StdDev) Reset()              { s.w.reset() }
func (s *StdDev) Update(b market.Bar) { s.Add(b.Close) }
func (s *StdDev) Add(x float64)       { s.w.add(x) }

func (s *StdDev) Value() float64 {
	if !s.Ready() {
		return 0
	}
	return s.w.stddev(s.w.mean())
}
