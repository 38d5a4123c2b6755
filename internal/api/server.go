// Package api serves backtests and the run journal over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/intraday/config"
	"github.com/rustyeddy/intraday/internal/logging"
	"github.com/rustyeddy/intraday/internal/runs"
	"github.com/rustyeddy/intraday/journal"
	"github.com/rustyeddy/intraday/market"
	"github.com/rustyeddy/intraday/sim"
)

// Options wires the server to the rest of the application.
type Options struct {
	// Runs executes backtests. Required.
	Runs *runs.Service

	// Reader answers the /runs endpoints. Nil disables them.
	Reader journal.Reader

	// Defaults is the config request configs are merged over.
	Defaults *config.Config

	// DataDir is where data_path requests are resolved. Empty refuses
	// data_path requests.
	DataDir string

	AllowedOrigins []string
	Logger         *zerolog.Logger
}

type Server struct {
	opts Options
	log  *zerolog.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Runs == nil {
		return nil, fmt.Errorf("api: Runs is required")
	}
	if opts.Defaults == nil {
		opts.Defaults = config.Default()
	}
	return &Server{opts: opts, log: logging.OrDiscard(opts.Logger)}, nil
}

// Router builds the gin engine with every route.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(s.log))
	router.Use(ErrorHandler(s.log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/backtest", s.RunBacktest)
		api.GET("/backtest/stream", s.StreamBacktest)

		api.GET("/runs", s.ListRuns)
		api.GET("/runs/:id", s.GetRun)
		api.GET("/runs/:id/trades", s.ListTrades)
		api.GET("/runs/:id/events", s.ListEvents)
		api.GET("/runs/:id/equity", s.ListEquity)
	}

	router.NoRoute(func(c *gin.Context) {
		abortError(c, http.StatusNotFound, "NOT_FOUND", fmt.Errorf("no route for %s", c.Request.URL.Path))
	})
	return router
}

// Handler is the router behind the CORS policy.
func (s *Server) Handler() http.Handler {
	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}).Handler(s.Router())
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// requestError carries the HTTP status and code for a failed request.
type requestError struct {
	status int
	code   string
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(code string, err error) *requestError {
	return &requestError{status: http.StatusBadRequest, code: code, err: err}
}

// classify maps a run error to a status and code.
func classify(err error) *requestError {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return re
	case errors.Is(err, sim.ErrStateViolation):
		return &requestError{status: http.StatusUnprocessableEntity, code: "STATE_VIOLATION", err: err}
	case errors.Is(err, journal.ErrNotFound):
		return &requestError{status: http.StatusNotFound, code: "NOT_FOUND", err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &requestError{status: http.StatusServiceUnavailable, code: "CANCELED", err: err}
	default:
		return &requestError{status: http.StatusInternalServerError, code: "RUN_FAILED", err: err}
	}
}

func respondError(c *gin.Context, err error) {
	re := classify(err)
	abortError(c, re.status, re.code, re.err)
}

// prepare resolves the config and the raw bars of a request.
func (s *Server) prepare(req BacktestRequest) (runs.Request, error) {
	cfg, err := config.Overlay(s.opts.Defaults, req.Config)
	if err != nil {
		return runs.Request{}, badRequest("INVALID_CONFIG", err)
	}

	switch {
	case len(req.Bars) > 0 && req.DataPath != "":
		return runs.Request{}, badRequest("INVALID_REQUEST", fmt.Errorf("send bars or data_path, not both"))

	case len(req.Bars) > 0:
		bars := make(market.Bars, len(req.Bars))
		for i, b := range req.Bars {
			if b.Time.IsZero() {
				return runs.Request{}, badRequest("INVALID_BARS", fmt.Errorf("bar %d: time is required", i))
			}
			bars[i] = b.bar()
		}
		dataset := req.Dataset
		if dataset == "" {
			dataset = "inline"
		}
		return runs.Request{Config: cfg, Bars: bars, Dataset: dataset}, nil

	case req.DataPath != "":
		path, err := s.resolveData(req.DataPath)
		if err != nil {
			return runs.Request{}, err
		}
		bars, err := market.ReadBarsFile(path, time.UTC)
		if err != nil {
			return runs.Request{}, badRequest("DATA_ERROR", err)
		}
		dataset := req.Dataset
		if dataset == "" {
			dataset = filepath.Base(path)
		}
		return runs.Request{Config: cfg, Bars: bars, Dataset: dataset}, nil

	default:
		return runs.Request{}, badRequest("INVALID_REQUEST", fmt.Errorf("bars or data_path is required"))
	}
}

// resolveData keeps data_path inside DataDir.
func (s *Server) resolveData(p string) (string, error) {
	if s.opts.DataDir == "" {
		return "", &requestError{status: http.StatusForbidden, code: "DATA_DISABLED", err: fmt.Errorf("server has no data directory")}
	}
	root, err := filepath.Abs(s.opts.DataDir)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, filepath.Clean("/"+p))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", badRequest("INVALID_DATA_PATH", fmt.Errorf("data_path %q is outside the data directory", p))
	}
	return full, nil
}
