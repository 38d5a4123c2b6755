package api

import (
	"encoding/json"
	"time"

	"github.com/rustyeddy/intraday/backtest"
	"github.com/rustyeddy/intraday/journal"
	"github.com/rustyeddy/intraday/market"
)

// BacktestRequest is the body of POST /api/v1/backtest and the first
// message on the stream socket. Exactly one of Bars or DataPath is used.
type BacktestRequest struct {
	// Config is merged over the server defaults; YAML keys, JSON syntax.
	Config json.RawMessage `json:"config,omitempty"`

	Bars     []BarInput `json:"bars,omitempty" binding:"dive"`
	DataPath string     `json:"data_path,omitempty"` // relative to the server data dir
	Dataset  string     `json:"dataset,omitempty"`

	IncludeEvents bool `json:"include_events,omitempty"`
	IncludeEquity bool `json:"include_equity,omitempty"`
}

// BarInput is one inline bar.
type BarInput struct {
	Time   time.Time `json:"time" binding:"required"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close" binding:"required"`
	Volume float64   `json:"volume"`
}

func (b BarInput) bar() market.Bar {
	return market.Bar{Time: b.Time, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
}

// BacktestResponse is the result of one run.
type BacktestResponse struct {
	RunID    string    `json:"run_id"`
	Status   string    `json:"status"`
	Strategy string    `json:"strategy"`
	Sizer    string    `json:"sizer"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Bars     int       `json:"bars"`

	Clean   CleanStats       `json:"clean"`
	Summary backtest.Summary `json:"summary"`

	Trades []journal.TradeRecord  `json:"trades"`
	Events []journal.EventRecord  `json:"events,omitempty"`
	Equity []journal.EquityRecord `json:"equity,omitempty"`
}

// CleanStats reports what bar cleaning removed or repaired.
type CleanStats struct {
	Input        int `json:"input"`
	Duplicates   int `json:"duplicates"`
	OutOfSession int `json:"out_of_session"`
	Filled       int `json:"filled"`
	Dropped      int `json:"dropped"`
	Output       int `json:"output"`
}

func cleanStats(s market.CleanStats) CleanStats {
	return CleanStats{
		Input:        s.Input,
		Duplicates:   s.Duplicates,
		OutOfSession: s.OutOfRange,
		Filled:       s.Filled,
		Dropped:      s.Dropped,
		Output:       s.Output,
	}
}

// RunsResponse lists journaled runs, newest first.
type RunsResponse struct {
	Runs []journal.RunRecord `json:"runs"`
}

// StreamMessage is one frame on the stream socket.
type StreamMessage struct {
	Type    string               `json:"type"` // "event", "summary" or "error"
	RunID   string               `json:"run_id,omitempty"`
	Event   *journal.EventRecord `json:"event,omitempty"`
	Summary *backtest.Summary    `json:"summary,omitempty"`
	Error   *ErrorDetail         `json:"error,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
