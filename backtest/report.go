package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// RunInfo identifies a run in printed reports.
type RunInfo struct {
	RunID      string
	Created    time.Time
	Instrument string
	Dataset    string
	Session    string
}

func money(x float64) string {
	return decimal.NewFromFloat(x).StringFixed(2)
}

// PrintResult writes a human-readable run report.
func PrintResult(w io.Writer, info RunInfo, r *Result) {
	s := r.Summary.Rounded()

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	if info.RunID != "" {
		fmt.Fprintf(w, "Run ID:        %s\n", info.RunID)
	}
	if !info.Created.IsZero() {
		fmt.Fprintf(w, "Created:       %s\n", info.Created.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)
	fmt.Fprintf(w, "Sizer:         %s\n", r.Sizer)
	if info.Instrument != "" {
		fmt.Fprintf(w, "Instrument:    %s\n", info.Instrument)
	}
	if info.Dataset != "" {
		fmt.Fprintf(w, "Dataset:       %s\n", info.Dataset)
	}
	if info.Session != "" {
		fmt.Fprintf(w, "Session:       %s\n", info.Session)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Bars:          %d\n", r.Bars)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", s.ClosedTrades)
	fmt.Fprintf(w, "Wins:          %d\n", s.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", s.Losses)
	if s.ClosedTrades > 0 {
		fmt.Fprintf(w, "Win Rate:      %.2f%%\n", s.WinRate*100)
		fmt.Fprintf(w, "Avg Trade P/L: %s\n", money(s.AvgTradePL))
	} else {
		fmt.Fprintln(w, "Win Rate:      n/a")
	}
	if s.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", s.ProfitFactor)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Equity:  %s\n", money(s.StartingEquity))
	fmt.Fprintf(w, "End Equity:    %s\n", money(s.EndingEquity))
	fmt.Fprintf(w, "Total P/L:     %s\n", money(s.TotalPL))
	fmt.Fprintf(w, "Max Drawdown:  %s (%.2f%%)\n", money(s.MaxDrawdown), s.MaxDrawdownPct)
	if s.OpenAtEnd {
		fmt.Fprintln(w, "Open at end:   yes (end equity includes unrealized P/L)")
	}

	fmt.Fprintln(w)
}
