package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rustyeddy/intraday/backtest"
	"github.com/rustyeddy/intraday/indicators"
	"github.com/rustyeddy/intraday/journal"
	"github.com/rustyeddy/intraday/market"
	"github.com/rustyeddy/intraday/risk"
	"github.com/rustyeddy/intraday/strategies"
	"gopkg.in/yaml.v3"
)

// Config represents the complete backtest configuration
type Config struct {
	Run      RunConfig      `json:"run" yaml:"run"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Sizing   SizingConfig   `json:"sizing" yaml:"sizing"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Server   ServerConfig   `json:"server" yaml:"server"`
}

// RunConfig selects the data and the trading window
type RunConfig struct {
	Instrument     string  `json:"instrument" yaml:"instrument"`
	DataPath       string  `json:"data_path,omitempty" yaml:"data_path,omitempty"`
	SessionStart   string  `json:"session_start,omitempty" yaml:"session_start,omitempty"`
	SessionEnd     string  `json:"session_end,omitempty" yaml:"session_end,omitempty"`
	StartingEquity float64 `json:"starting_equity" yaml:"starting_equity"`
	CloseAtEnd     bool    `json:"close_at_end" yaml:"close_at_end"`
}

// StrategyConfig contains signal generator parameters
type StrategyConfig struct {
	Kind      string  `json:"kind" yaml:"kind"`
	EMAWindow int     `json:"ema_window,omitempty" yaml:"ema_window,omitempty"`
	EMAShort  int     `json:"ema_short,omitempty" yaml:"ema_short,omitempty"`
	EMALong   int     `json:"ema_long,omitempty" yaml:"ema_long,omitempty"`
	BBWindow  int     `json:"bb_window,omitempty" yaml:"bb_window,omitempty"`
	BBK       float64 `json:"bb_k,omitempty" yaml:"bb_k,omitempty"`
	BBMiddle  string  `json:"bb_middle,omitempty" yaml:"bb_middle,omitempty"`
	HoldMid   bool    `json:"hold_mid,omitempty" yaml:"hold_mid,omitempty"`
}

// SizingConfig contains position sizer parameters
type SizingConfig struct {
	Kind           string  `json:"kind" yaml:"kind"`
	PositionSize   float64 `json:"position_size,omitempty" yaml:"position_size,omitempty"`
	BaseLot        float64 `json:"base_lot,omitempty" yaml:"base_lot,omitempty"`
	Multiplier     float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	Step           float64 `json:"step,omitempty" yaml:"step,omitempty"`
	TakeProfit     float64 `json:"take_profit,omitempty" yaml:"take_profit,omitempty"`
	ReverseSignals bool    `json:"reverse_signals" yaml:"reverse_signals"`
	CloseOnFlip    bool    `json:"close_on_flip" yaml:"close_on_flip"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type        string `json:"type" yaml:"type"` // "none", "csv", "sqlite" or "postgres"
	Dir         string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath      string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"`
}

// ServerConfig contains HTTP API parameters
type ServerConfig struct {
	Addr           string   `json:"addr" yaml:"addr"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data on top of Default, so omitted keys keep their
// defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	return Overlay(Default(), data)
}

// Overlay decodes data on top of a copy of base and validates the result.
// base is not modified.
func Overlay(base *Config, data []byte) (*Config, error) {
	cfg := base.clone()

	// Try YAML first, fall back to JSON
	err := yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = base.clone()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) clone() *Config {
	cp := *c
	cp.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	return &cp
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Run.Instrument == "" {
		return fmt.Errorf("run.instrument is required")
	}
	if c.Run.StartingEquity <= 0 {
		return fmt.Errorf("run.starting_equity must be positive")
	}
	if _, err := c.Session(); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	sc, err := c.StrategyConfig()
	if err != nil {
		return err
	}
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	rc, err := c.SizerConfig()
	if err != nil {
		return err
	}
	if err := rc.Validate(); err != nil {
		return fmt.Errorf("sizing: %w", err)
	}

	switch journal.Kind(c.Journal.Type) {
	case journal.KindNone:
	case journal.KindCSV:
		if c.Journal.Dir == "" {
			return fmt.Errorf("journal dir required for CSV type")
		}
	case journal.KindSQLite:
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case journal.KindPostgres:
		if c.Journal.DatabaseURL == "" {
			return fmt.Errorf("journal database_url required for Postgres type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv', 'sqlite' or 'postgres'")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

// Session returns the configured trading window.
func (c *Config) Session() (market.Session, error) {
	return market.NewSession(c.Run.SessionStart, c.Run.SessionEnd)
}

// StrategyConfig converts the strategy section into a generator config.
func (c *Config) StrategyConfig() (strategies.Config, error) {
	kind, err := strategies.ParseKind(c.Strategy.Kind)
	if err != nil {
		return strategies.Config{}, fmt.Errorf("strategy: %w", err)
	}
	s := c.Strategy
	return strategies.Config{
		Kind:      kind,
		EMASingle: strategies.EMASingleParams{Window: s.EMAWindow},
		EMACross:  strategies.EMACrossParams{Short: s.EMAShort, Long: s.EMALong},
		Bollinger: strategies.BollingerParams{
			Window:  s.BBWindow,
			K:       s.BBK,
			Middle:  indicators.MiddleKind(strings.ToLower(s.BBMiddle)),
			HoldMid: s.HoldMid,
		},
	}, nil
}

// SizerConfig converts the sizing section into a sizer config.
func (c *Config) SizerConfig() (risk.Config, error) {
	kind, err := risk.ParseKind(c.Sizing.Kind)
	if err != nil {
		return risk.Config{}, fmt.Errorf("sizing: %w", err)
	}
	s := c.Sizing
	return risk.Config{
		Kind:  kind,
		Fixed: risk.FixedConfig{Size: s.PositionSize},
		Martingale: risk.MartingaleConfig{
			BaseLot:        s.BaseLot,
			Multiplier:     s.Multiplier,
			Step:           s.Step,
			TakeProfit:     s.TakeProfit,
			ReverseSignals: s.ReverseSignals,
			CloseOnFlip:    s.CloseOnFlip,
		},
	}, nil
}

// BacktestOptions returns the runner options; the caller supplies the
// logger and listener.
func (c *Config) BacktestOptions() backtest.Options {
	return backtest.Options{
		StartingEquity: c.Run.StartingEquity,
		CloseAtEnd:     c.Run.CloseAtEnd,
	}
}

// JournalOptions returns the options journal.Open expects.
func (c *Config) JournalOptions() journal.Options {
	return journal.Options{
		Type:        journal.Kind(c.Journal.Type),
		Dir:         c.Journal.Dir,
		DBPath:      c.Journal.DBPath,
		DatabaseURL: c.Journal.DatabaseURL,
	}
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	m := risk.DefaultMartingaleConfig()
	return &Config{
		Run: RunConfig{
			Instrument:     "gold",
			SessionStart:   "15:00",
			SessionEnd:     "17:00",
			StartingEquity: backtest.DefaultStartingEquity,
		},
		Strategy: StrategyConfig{
			Kind:      string(strategies.KindEMACross),
			EMAWindow: 9,
			EMAShort:  9,
			EMALong:   21,
			BBWindow:  20,
			BBK:       2,
			BBMiddle:  string(indicators.MiddleSMA),
		},
		Sizing: SizingConfig{
			Kind:           string(risk.KindFixed),
			PositionSize:   2.0,
			BaseLot:        m.BaseLot,
			Multiplier:     m.Multiplier,
			Step:           m.Step,
			TakeProfit:     m.TakeProfit,
			ReverseSignals: m.ReverseSignals,
			CloseOnFlip:    m.CloseOnFlip,
		},
		Journal: JournalConfig{
			Type:   string(journal.KindSQLite),
			DBPath: "./intraday.db",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}
