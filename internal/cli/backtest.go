package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/intraday/backtest"
	"github.com/rustyeddy/intraday/config"
	"github.com/rustyeddy/intraday/internal/runs"
	"github.com/rustyeddy/intraday/journal"
)

type backtestFlags struct {
	data         string
	strategy     string
	sizer        string
	sessionStart string
	sessionEnd   string
	equity       float64
	closeAtEnd   bool
	journalType  string
	org          bool
	tradesCSV    string
	equityCSV    string
}

func newBacktestCmd(rc *RootConfig) *cobra.Command {
	var f backtestFlags

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Backtest a strategy on a bar CSV",
		Long: `Run one backtest over a Datetime,Open,High,Low,Close,Volume CSV.

Settings come from --config (or the defaults); the flags below override
them for this run.

Example:
  trader backtest --data data/gold_1m.csv --strategy ema_cross --sizer martingale`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rc.Load(cmd)
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			return runBacktest(cmd, rc, cfg, f)
		},
	}

	cmd.Flags().StringVar(&f.data, "data", "", "Bar CSV (default run.data_path)")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "ema_single|ema_cross|bollinger")
	cmd.Flags().StringVar(&f.sizer, "sizer", "", "fixed|martingale")
	cmd.Flags().StringVar(&f.sessionStart, "session-start", "", "Session start HH:MM")
	cmd.Flags().StringVar(&f.sessionEnd, "session-end", "", "Session end HH:MM")
	cmd.Flags().Float64Var(&f.equity, "starting-equity", backtest.DefaultStartingEquity, "Starting equity")
	cmd.Flags().BoolVar(&f.closeAtEnd, "close-at-end", false, "Close an open position on the last bar")
	cmd.Flags().StringVar(&f.journalType, "journal", "", "none|csv|sqlite|postgres")
	cmd.Flags().BoolVar(&f.org, "org", false, "Print the Org-mode report instead of the summary")
	cmd.Flags().StringVar(&f.tradesCSV, "trades-csv", "", "Also write closed trades to this CSV")
	cmd.Flags().StringVar(&f.equityCSV, "equity-csv", "", "Also write the equity curve to this CSV")

	return cmd
}

// apply copies the flags the user set onto cfg and revalidates it.
func (f backtestFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := func(name string) bool { return cmd.Flags().Changed(name) }

	if changed("data") {
		cfg.Run.DataPath = f.data
	}
	if changed("strategy") {
		cfg.Strategy.Kind = f.strategy
	}
	if changed("sizer") {
		cfg.Sizing.Kind = f.sizer
	}
	if changed("session-start") {
		cfg.Run.SessionStart = f.sessionStart
	}
	if changed("session-end") {
		cfg.Run.SessionEnd = f.sessionEnd
	}
	if changed("starting-equity") {
		cfg.Run.StartingEquity = f.equity
	}
	if changed("close-at-end") {
		cfg.Run.CloseAtEnd = f.closeAtEnd
	}
	if changed("journal") {
		cfg.Journal.Type = f.journalType
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func runBacktest(cmd *cobra.Command, rc *RootConfig, cfg *config.Config, f backtestFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := journal.Open(ctx, cfg.JournalOptions())
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if j != nil {
		defer j.Close()
	}

	svc := &runs.Service{Journal: j, Logger: rc.Logger}
	out, err := svc.RunFile(ctx, cfg, cfg.Run.DataPath, nil)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if f.org {
		trades := journal.TradesFrom(out.Run.RunID, out.Result.Trades)
		text, err := journal.FormatRunOrg(out.Run, trades)
		if err != nil {
			return err
		}
		fmt.Fprint(w, text)
	} else {
		backtest.PrintResult(w, out.Run.Info(), out.Result)
	}

	if f.tradesCSV != "" {
		if err := writeFile(f.tradesCSV, func(fh *os.File) error {
			return journal.WriteTradesCSV(fh, journal.TradesFrom(out.Run.RunID, out.Result.Trades))
		}); err != nil {
			return err
		}
	}
	if f.equityCSV != "" {
		if err := writeFile(f.equityCSV, func(fh *os.File) error {
			return journal.WriteEquityCSV(fh, journal.EquityFrom(out.Run.RunID, out.Result.Equity))
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(fh); err != nil {
		fh.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return fh.Close()
}
