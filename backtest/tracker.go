package backtest

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/intraday/sim"
)

// NoLossProfitFactor is reported when there are winning trades and no
// losing ones.
const NoLossProfitFactor = 999.0

// Summary is the performance roll-up of a run.
type Summary struct {
	StartingEquity float64 `json:"starting_equity"`
	EndingEquity   float64 `json:"ending_equity"`

	ClosedTrades int     `json:"closed_trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"` // 0..1, 0 when nothing closed

	TotalPL      float64 `json:"total_pl"`
	AvgTradePL   float64 `json:"avg_trade_pl"`
	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"` // positive number
	ProfitFactor float64 `json:"profit_factor"`

	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`

	// OpenAtEnd is set when the last event left a position open, in which
	// case EndingEquity includes unrealized P&L.
	OpenAtEnd bool `json:"open_at_end"`
}

// Fold rolls the trade log and equity curve into a Summary. Trade
// statistics come from close events only; drawdown and ending equity come
// from the equity samples.
func Fold(events []sim.TradeEvent, samples []sim.EquitySample, startingEquity float64) Summary {
	s := Summary{
		StartingEquity: startingEquity,
		EndingEquity:   startingEquity,
	}

	for _, ev := range events {
		if ev.Kind != sim.EventClose {
			continue
		}
		pl := ev.PL()
		s.ClosedTrades++
		s.TotalPL += pl
		switch {
		case pl > 0:
			s.Wins++
			s.GrossProfit += pl
		case pl < 0:
			s.Losses++
			s.GrossLoss -= pl
		}
	}
	if len(events) > 0 {
		s.OpenAtEnd = events[len(events)-1].Kind != sim.EventClose
	}

	if s.ClosedTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.ClosedTrades)
		s.AvgTradePL = s.TotalPL / float64(s.ClosedTrades)
	}
	switch {
	case s.GrossLoss > 0:
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	case s.GrossProfit > 0:
		s.ProfitFactor = NoLossProfitFactor
	}

	if len(samples) > 0 {
		s.EndingEquity = samples[len(samples)-1].Equity
	}
	s.MaxDrawdown, s.MaxDrawdownPct = maxDrawdown(startingEquity, samples)
	return s
}

// Drawdowns returns the running maximum drawdown after each sample. The
// series is non-decreasing and its last element equals Summary.MaxDrawdown.
func Drawdowns(startingEquity float64, samples []sim.EquitySample) []float64 {
	out := make([]float64, len(samples))
	peak, dd := startingEquity, 0.0
	for i, smp := range samples {
		if smp.Equity > peak {
			peak = smp.Equity
		}
		if d := peak - smp.Equity; d > dd {
			dd = d
		}
		out[i] = dd
	}
	return out
}

// maxDrawdown is the largest peak-to-trough fall, in money and in percent
// of the peak it fell from. The peak starts at the starting equity.
func maxDrawdown(startingEquity float64, samples []sim.EquitySample) (float64, float64) {
	peak, dd, pct := startingEquity, 0.0, 0.0
	for _, smp := range samples {
		if smp.Equity > peak {
			peak = smp.Equity
		}
		d := peak - smp.Equity
		if d > dd {
			dd = d
		}
		if peak > 0 && d/peak*100 > pct {
			pct = d / peak * 100
		}
	}
	return dd, pct
}

// Rounded returns a copy with money fields rounded to cents, ratios to four
// places and percentages to two, for final reporting. Fold never rounds.
func (s Summary) Rounded() Summary {
	s.StartingEquity = round(s.StartingEquity, 2)
	s.EndingEquity = round(s.EndingEquity, 2)
	s.WinRate = round(s.WinRate, 4)
	s.TotalPL = round(s.TotalPL, 2)
	s.AvgTradePL = round(s.AvgTradePL, 2)
	s.GrossProfit = round(s.GrossProfit, 2)
	s.GrossLoss = round(s.GrossLoss, 2)
	s.ProfitFactor = round(s.ProfitFactor, 4)
	s.MaxDrawdown = round(s.MaxDrawdown, 2)
	s.MaxDrawdownPct = round(s.MaxDrawdownPct, 2)
	return s
}

func round(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	f, _ := decimal.NewFromFloat(x).Round(places).Float64()
	return f
}
