package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/intraday/internal/api"
	"github.com/rustyeddy/intraday/internal/runs"
	"github.com/rustyeddy/intraday/journal"
)

func newServeCmd(rc *RootConfig) *cobra.Command {
	var (
		addr    string
		dataDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the backtest API",
		Long: `Serve backtests and the run journal over HTTP.

Routes:
  GET  /health
  POST /api/v1/backtest
  GET  /api/v1/backtest/stream   (websocket)
  GET  /api/v1/runs[/:id[/trades|/events|/equity]]

Example:
  trader serve --addr :8080 --data-dir ./data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rc.Load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := api.Options{
				Runs:           &runs.Service{Logger: rc.Logger},
				Defaults:       cfg,
				DataDir:        dataDir,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				Logger:         rc.Logger,
			}

			switch journal.Kind(cfg.Journal.Type) {
			case journal.KindSQLite, journal.KindPostgres:
				store, err := journal.OpenStore(ctx, cfg.JournalOptions())
				if err != nil {
					return fmt.Errorf("open journal: %w", err)
				}
				defer store.Close()
				opts.Runs.Journal = store
				opts.Reader = store
			default:
				j, err := journal.Open(ctx, cfg.JournalOptions())
				if err != nil {
					return fmt.Errorf("open journal: %w", err)
				}
				if j != nil {
					defer j.Close()
					opts.Runs.Journal = j
				}
			}

			srv, err := api.New(opts)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address (default server.addr)")
	cmd.Flags().StringVar(&dataDir, "data-dir", ".", "directory data_path requests are read from")
	return cmd
}
