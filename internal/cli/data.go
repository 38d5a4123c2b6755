package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/intraday/market"
)

func newDataCmd(rc *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Bar dataset tools",
	}
	cmd.AddCommand(newDataCleanCmd(rc))
	return cmd
}

func newDataCleanCmd(rc *RootConfig) *cobra.Command {
	var (
		in, out      string
		start, end   string
		useConfigWin bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Sort, dedupe, session-filter and forward-fill a bar CSV",
		Long: `Clean a Datetime,Open,High,Low,Close,Volume CSV the same way a
backtest does before it runs, and write the result.

Example:
  trader data clean --in raw/gold.csv --out data/gold.csv --session-start 15:00 --session-end 17:00`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if useConfigWin {
				cfg, err := rc.Load(cmd)
				if err != nil {
					return err
				}
				start, end = cfg.Run.SessionStart, cfg.Run.SessionEnd
			}
			sess, err := market.NewSession(start, end)
			if err != nil {
				return err
			}

			raw, err := market.ReadBarsFile(in, time.UTC)
			if err != nil {
				return err
			}
			bars, st := market.Clean(raw, sess)

			w := cmd.OutOrStdout()
			if out == "" || out == "-" {
				if err := market.WriteBarsCSV(w, bars); err != nil {
					return err
				}
			} else {
				if err := writeFile(out, func(fh *os.File) error { return market.WriteBarsCSV(fh, bars) }); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.ErrOrStderr(),
				"cleaned %d bars (session %s): %d duplicates, %d out of session, %d filled, %d dropped, %d kept\n",
				st.Input, sess, st.Duplicates, st.OutOfRange, st.Filled, st.Dropped, st.Output)
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "input bar CSV (required)")
	cmd.Flags().StringVar(&out, "out", "-", "output CSV, - for stdout")
	cmd.Flags().StringVar(&start, "session-start", "", "session start HH:MM (empty keeps all bars)")
	cmd.Flags().StringVar(&end, "session-end", "", "session end HH:MM")
	cmd.Flags().BoolVar(&useConfigWin, "config-session", false, "use the session from the config instead")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
