package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/intraday/journal"
)

func newJournalCmd(rc *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query journaled backtest runs",
		Long: `Query runs recorded in the SQLite or PostgreSQL journal.

Subcommands:
  runs    - List recent runs
  show    - Print one run as an Org-mode report
  trades  - Print the closed trades of a run as CSV
  equity  - Print the equity curve of a run as CSV
  rm      - Delete a run and everything recorded under it

Examples:
  trader journal runs --limit 10
  trader journal show 01J5Z8...`,
	}

	cmd.AddCommand(
		newJournalRunsCmd(rc),
		newJournalShowCmd(rc),
		newJournalTradesCmd(rc),
		newJournalEquityCmd(rc),
		newJournalRmCmd(rc),
	)
	return cmd
}

// withStore opens the configured queryable journal for the duration of fn.
func withStore(cmd *cobra.Command, rc *RootConfig, fn func(ctx context.Context, s journal.Store) error) error {
	cfg, err := rc.Load(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := journal.OpenStore(ctx, cfg.JournalOptions())
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer s.Close()
	return fn(ctx, s)
}

func newJournalRunsCmd(rc *RootConfig) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rc, func(ctx context.Context, s journal.Store) error {
				recs, err := s.ListRuns(ctx, limit)
				if err != nil {
					return fmt.Errorf("query runs: %w", err)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RUN ID\tCREATED\tSTRATEGY\tSIZER\tBARS\tTRADES\tTOTAL P/L\tMAX DD")
				for _, r := range recs {
					sum := r.Summary
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%.2f\t%.2f\n",
						r.RunID, r.Created.UTC().Format("2006-01-02 15:04"), r.Strategy, r.Sizer,
						r.Bars, sum.ClosedTrades, sum.TotalPL, sum.MaxDrawdown)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list (0 = all)")
	return cmd
}

func newJournalShowCmd(rc *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a run as an Org-mode report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rc, func(ctx context.Context, s journal.Store) error {
				run, err := s.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				trades, err := s.ListTrades(ctx, run.RunID)
				if err != nil {
					return fmt.Errorf("query trades: %w", err)
				}
				text, err := journal.FormatRunOrg(run, trades)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}

func newJournalTradesCmd(rc *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "trades <run-id>",
		Short: "Print the closed trades of a run as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rc, func(ctx context.Context, s journal.Store) error {
				if _, err := s.GetRun(ctx, args[0]); err != nil {
					return err
				}
				trades, err := s.ListTrades(ctx, args[0])
				if err != nil {
					return fmt.Errorf("query trades: %w", err)
				}
				return journal.WriteTradesCSV(cmd.OutOrStdout(), trades)
			})
		},
	}
}

func newJournalEquityCmd(rc *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "equity <run-id>",
		Short: "Print the equity curve of a run as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rc, func(ctx context.Context, s journal.Store) error {
				if _, err := s.GetRun(ctx, args[0]); err != nil {
					return err
				}
				eq, err := s.ListEquity(ctx, args[0])
				if err != nil {
					return fmt.Errorf("query equity: %w", err)
				}
				return journal.WriteEquityCSV(cmd.OutOrStdout(), eq)
			})
		},
	}
}

func newJournalRmCmd(rc *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <run-id>...",
		Short: "Delete runs with their events, trades and equity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rc, func(ctx context.Context, s journal.Store) error {
				for _, id := range args {
					if err := s.DeleteRun(ctx, id); err != nil {
						return fmt.Errorf("delete run: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				}
				return nil
			})
		},
	}
}
