package journal

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

var runOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"date":   func(t time.Time) string { return t.UTC().Format("2006-01-02") },
	"stamp":  func(t time.Time) string { return t.UTC().Format("2006-01-02 Mon 15:04") },
}

var runOrgTmpl = template.Must(template.New("run").Funcs(runOrgFuncs).Parse(RunOrgTemplate))

// RunOrgTemplate renders a RunRecord as an Org-mode heading with the
// facts in a PROPERTIES drawer.
const RunOrgTemplate = `* BACKTEST: {{.Strategy}} {{or .Instrument "(instrument?)"}}
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:STRATEGY:    {{.Strategy}}
:SIZER:       {{.Sizer}}
:INSTRUMENT:  {{or .Instrument "(instrument?)"}}
:DATASET:     {{or .Dataset "(dataset?)"}}
:SESSION:     {{or .Session "all"}}
:START_DATE:  {{date .Start}}
:END_DATE:    {{date .End}}
:BARS:        {{.Bars}}
:START_EQ:    {{printf "%.2f" .Summary.StartingEquity}}
:END_EQ:      {{printf "%.2f" .Summary.EndingEquity}}
:TOTAL_PL:    {{printf "%.2f" .Summary.TotalPL}}
:MAX_DD:      {{printf "%.2f" .Summary.MaxDrawdown}}
:MAX_DD_PCT:  {{printf "%.2f" .Summary.MaxDrawdownPct}}
:TRADES:      {{.Summary.ClosedTrades}}
:WINS:        {{.Summary.Wins}}
:LOSSES:      {{.Summary.Losses}}
:WIN_RATE:    {{printf "%.2f" (mul100 .Summary.WinRate)}}
:PROFIT_FAC:  {{if ne .Summary.ProfitFactor 0.0}}{{printf "%.2f" .Summary.ProfitFactor}}{{else}}(profit-factor?){{end}}
:CREATED:     [{{stamp .Created}}]
:END:

** Configuration
#+begin_src json
{{printf "%s" .Config}}
#+end_src

** Performance Summary
- Total P/L:        *{{printf "%.2f" .Summary.TotalPL}}*
- Avg Trade P/L:    *{{printf "%.2f" .Summary.AvgTradePL}}*
- Max Drawdown:     *{{printf "%.2f" .Summary.MaxDrawdown}} ({{printf "%.2f" .Summary.MaxDrawdownPct}}%)*
- Win Rate:         *{{printf "%.2f" (mul100 .Summary.WinRate)}}%*
{{- if .Summary.OpenAtEnd}}
- Position still open at the last bar
{{- end}}

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Summary.Wins}} |
| Losses  | {{.Summary.Losses}} |
| Total   | {{.Summary.ClosedTrades}} |
`

// FormatRunOrg renders run followed by one sub-heading per trade.
func FormatRunOrg(run RunRecord, trades []TradeRecord) (string, error) {
	var buf bytes.Buffer
	if err := runOrgTmpl.Execute(&buf, run); err != nil {
		return "", fmt.Errorf("org: %w", err)
	}
	if len(trades) > 0 {
		buf.WriteString("\n** Trades\n")
		buf.WriteString(FormatTradesOrg(trades))
	}
	return buf.String(), nil
}

// FormatTradeOrg renders one closed trade as an Org-mode block.
func FormatTradeOrg(t TradeRecord) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("*** Trade %d: %s %g (%s)\n", t.TradeNo, t.Side, t.Size, shortID(t.RunID)))
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":RUN_ID: %s\n", t.RunID))
	b.WriteString(fmt.Sprintf(":TRADE_NO: %d\n", t.TradeNo))
	b.WriteString(fmt.Sprintf(":SIDE: %s\n", t.Side))
	b.WriteString(fmt.Sprintf(":SIZE: %g\n", t.Size))
	b.WriteString(fmt.Sprintf(":ADDS: %d\n", t.Adds))
	b.WriteString(fmt.Sprintf(":ENTRY_PRICE: %.5f\n", t.EntryPrice))
	b.WriteString(fmt.Sprintf(":EXIT_PRICE: %.5f\n", t.ExitPrice))
	b.WriteString(fmt.Sprintf(":OPEN_TIME: %s\n", t.EntryTime.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf(":CLOSE_TIME: %s\n", t.ExitTime.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf(":REALIZED_PL: %.2f\n", t.RealizedPL))
	b.WriteString(fmt.Sprintf(":REASON: %s\n", t.Reason))
	b.WriteString(":END:\n")
	return b.String()
}

// FormatTradesOrg renders trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
