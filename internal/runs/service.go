// Package runs is the application layer shared by the CLI and the API: it
// cleans bars, builds the generator and sizer from a config, runs the
// backtest and journals the outcome.
package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/intraday/backtest"
	"github.com/rustyeddy/intraday/config"
	"github.com/rustyeddy/intraday/internal/logging"
	"github.com/rustyeddy/intraday/journal"
	"github.com/rustyeddy/intraday/market"
	"github.com/rustyeddy/intraday/pkg/id"
	"github.com/rustyeddy/intraday/risk"
	"github.com/rustyeddy/intraday/sim"
	"github.com/rustyeddy/intraday/strategies"
)

// Request is one backtest to run.
type Request struct {
	Config *config.Config

	// Bars are raw; they are cleaned with the config's session first.
	Bars    market.Bars
	Dataset string

	Listener sim.EventListener

	// RunID is minted when empty.
	RunID string
}

// Outcome is what a run produced and how it was recorded.
type Outcome struct {
	Run    journal.RunRecord
	Result *backtest.Result
	Clean  market.CleanStats
}

// Service runs backtests. Journal may be nil, in which case runs are not
// recorded.
type Service struct {
	Journal journal.Journal
	Logger  *zerolog.Logger

	// Now stamps new runs; tests pin it.
	Now func() time.Time
}

func (s *Service) logger() *zerolog.Logger {
	return logging.OrDiscard(s.Logger)
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Run cleans req.Bars, runs the configured generator and sizer over them and
// records the run.
func (s *Service) Run(ctx context.Context, req Request) (*Outcome, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	sess, err := cfg.Session()
	if err != nil {
		return nil, err
	}
	gen, sizer, err := Build(cfg)
	if err != nil {
		return nil, err
	}

	log := s.logger()
	bars, stats := market.Clean(req.Bars, sess)
	log.Info().
		Int("input", stats.Input).
		Int("duplicates", stats.Duplicates).
		Int("out_of_session", stats.OutOfRange).
		Int("filled", stats.Filled).
		Int("dropped", stats.Dropped).
		Int("output", stats.Output).
		Msg("bars cleaned")

	opts := cfg.BacktestOptions()
	opts.Listener = req.Listener
	opts.Logger = log

	res, err := backtest.Run(ctx, bars, gen, sizer, opts)
	if err != nil {
		return nil, err
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	created := s.now()
	runID := req.RunID
	if runID == "" {
		runID = id.At(created)
	}
	info := backtest.RunInfo{
		RunID:      runID,
		Created:    created,
		Instrument: cfg.Run.Instrument,
		Dataset:    req.Dataset,
		Session:    sess.String(),
	}
	run := journal.NewRunRecord(info.RunID, info, cfgJSON, res)

	if s.Journal != nil {
		if err := journal.Record(ctx, s.Journal, run, res); err != nil {
			return nil, err
		}
		log.Info().Str("run_id", run.RunID).Msg("run recorded")
	}

	return &Outcome{Run: run, Result: res, Clean: stats}, nil
}

// RunFile reads bars from path and runs them. path defaults to the
// config's run.data_path.
func (s *Service) RunFile(ctx context.Context, cfg *config.Config, path string, l sim.EventListener) (*Outcome, error) {
	if path == "" && cfg != nil {
		path = cfg.Run.DataPath
	}
	if path == "" {
		return nil, fmt.Errorf("data path is required")
	}
	bars, err := market.ReadBarsFile(path, time.UTC)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, Request{
		Config:   cfg,
		Bars:     bars,
		Dataset:  filepath.Base(path),
		Listener: l,
	})
}

// Build returns the generator and sizer a config describes.
func Build(cfg *config.Config) (strategies.Generator, risk.Sizer, error) {
	sc, err := cfg.StrategyConfig()
	if err != nil {
		return nil, nil, err
	}
	gen, err := strategies.New(sc)
	if err != nil {
		return nil, nil, fmt.Errorf("strategy: %w", err)
	}

	rc, err := cfg.SizerConfig()
	if err != nil {
		return nil, nil, err
	}
	sizer, err := risk.New(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("sizing: %w", err)
	}
	return gen, sizer, nil
}
