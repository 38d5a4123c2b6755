package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/intraday/journal"
)

const defaultRunsLimit = 50

// reader returns the journal reader or writes a 503.
func (s *Server) reader(c *gin.Context) (journal.Reader, bool) {
	if s.opts.Reader == nil {
		abortError(c, http.StatusServiceUnavailable, "JOURNAL_UNAVAILABLE",
			fmt.Errorf("the run journal is not queryable on this server"))
		return nil, false
	}
	return s.opts.Reader, true
}

// ListRuns handles GET /api/v1/runs?limit=N
func (s *Server) ListRuns(c *gin.Context) {
	r, ok := s.reader(c)
	if !ok {
		return
	}

	limit := defaultRunsLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			abortError(c, http.StatusBadRequest, "INVALID_REQUEST", fmt.Errorf("bad limit %q", v))
			return
		}
		limit = n
	}

	recs, err := r.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if recs == nil {
		recs = []journal.RunRecord{}
	}
	c.JSON(http.StatusOK, RunsResponse{Runs: recs})
}

// GetRun handles GET /api/v1/runs/:id
func (s *Server) GetRun(c *gin.Context) {
	r, ok := s.reader(c)
	if !ok {
		return
	}
	rec, err := r.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ListTrades handles GET /api/v1/runs/:id/trades
func (s *Server) ListTrades(c *gin.Context) {
	r, ok := s.reader(c)
	if !ok {
		return
	}
	if !s.runExists(c, r) {
		return
	}
	trs, err := r.ListTrades(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if trs == nil {
		trs = []journal.TradeRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"trades": trs})
}

// ListEvents handles GET /api/v1/runs/:id/events
func (s *Server) ListEvents(c *gin.Context) {
	r, ok := s.reader(c)
	if !ok {
		return
	}
	if !s.runExists(c, r) {
		return
	}
	evs, err := r.ListEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if evs == nil {
		evs = []journal.EventRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}

// ListEquity handles GET /api/v1/runs/:id/equity
func (s *Server) ListEquity(c *gin.Context) {
	r, ok := s.reader(c)
	if !ok {
		return
	}
	if !s.runExists(c, r) {
		return
	}
	eq, err := r.ListEquity(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if eq == nil {
		eq = []journal.EquityRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"equity": eq})
}

func (s *Server) runExists(c *gin.Context, r journal.Reader) bool {
	if _, err := r.GetRun(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return false
	}
	return true
}
