package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/intraday/internal/runs"
	"github.com/rustyeddy/intraday/journal"
)

// RunBacktest handles POST /api/v1/backtest
func (s *Server) RunBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}

	rr, err := s.prepare(req)
	if err != nil {
		respondError(c, err)
		return
	}

	out, err := s.opts.Runs.Run(c.Request.Context(), rr)
	if err != nil {
		s.log.Warn().Err(err).Msg("backtest failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newBacktestResponse(out, req))
}

func newBacktestResponse(out *runs.Outcome, req BacktestRequest) BacktestResponse {
	res := out.Result
	runID := out.Run.RunID

	resp := BacktestResponse{
		RunID:    runID,
		Status:   "completed",
		Strategy: res.Strategy,
		Sizer:    res.Sizer,
		Start:    res.Start,
		End:      res.End,
		Bars:     res.Bars,
		Clean:    cleanStats(out.Clean),
		Summary:  res.Summary.Rounded(),
		Trades:   journal.TradesFrom(runID, res.Trades),
	}
	if req.IncludeEvents {
		resp.Events = journal.EventsFrom(runID, res.Events)
	}
	if req.IncludeEquity {
		resp.Equity = journal.EquityFrom(runID, res.Equity)
	}
	return resp
}
