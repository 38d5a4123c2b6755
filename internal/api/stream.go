package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rustyeddy/intraday/journal"
	"github.com/rustyeddy/intraday/pkg/id"
	"github.com/rustyeddy/intraday/sim"
)

const streamWriteWait = 10 * time.Second

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin allows every origin unless AllowedOrigins is set.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// StreamBacktest handles GET /api/v1/backtest/stream. The client sends one
// BacktestRequest; the server answers with an "event" frame per trade
// event, then a "summary" frame, and closes. Failures are an "error" frame.
func (s *Server) StreamBacktest(c *gin.Context) {
	up := s.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("stream upgrade failed")
		return
	}
	defer conn.Close()

	var req BacktestRequest
	if err := conn.ReadJSON(&req); err != nil {
		writeFrame(conn, StreamMessage{Type: "error", Error: &ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()}})
		return
	}

	rr, err := s.prepare(req)
	if err != nil {
		writeFrame(conn, errorFrame(err))
		return
	}

	runID := id.New()
	rr.RunID = runID

	var writeErr error
	rr.Listener = sim.EventListenerFunc(func(ev sim.TradeEvent) {
		if writeErr != nil {
			return
		}
		rec := journal.EventsFrom(runID, []sim.TradeEvent{ev})[0]
		writeErr = writeFrame(conn, StreamMessage{Type: "event", RunID: runID, Event: &rec})
	})

	out, err := s.opts.Runs.Run(c.Request.Context(), rr)
	if writeErr != nil {
		s.log.Warn().Str("run_id", runID).Err(writeErr).Msg("stream client went away")
		return
	}
	if err != nil {
		writeFrame(conn, errorFrame(err))
		return
	}

	sum := out.Result.Summary.Rounded()
	writeFrame(conn, StreamMessage{Type: "summary", RunID: runID, Summary: &sum})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(streamWriteWait))
}

func errorFrame(err error) StreamMessage {
	re := classify(err)
	return StreamMessage{Type: "error", Error: &ErrorDetail{Code: re.code, Message: re.err.Error()}}
}

func writeFrame(conn *websocket.Conn, m StreamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(m)
}
