// Package cli is the trader command tree.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rustyeddy/intraday/config"
	"github.com/rustyeddy/intraday/internal/logging"
	"github.com/rustyeddy/intraday/journal"
)

// RootConfig holds the persistent flags and what PersistentPreRunE builds
// from them.
type RootConfig struct {
	ConfigPath string
	DBPath     string
	LogLevel   string

	// dbSet is true when --db or TRADER_DB was given.
	dbSet bool

	Logger *zerolog.Logger
}

// EnvPrefix prefixes the environment variables that stand in for the
// persistent flags: TRADER_CONFIG, TRADER_DB and TRADER_LOG_LEVEL.
const EnvPrefix = "TRADER"

// bind resolves the persistent flags with viper: an explicit flag wins,
// then the environment, then the flag default.
func (rc *RootConfig) bind(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	rc.ConfigPath = v.GetString("config")
	rc.DBPath = v.GetString("db")
	rc.LogLevel = v.GetString("log-level")

	_, envDB := os.LookupEnv(EnvPrefix + "_DB")
	rc.dbSet = envDB || cmd.Flags().Changed("db")
	return nil
}

// Load returns the config file named by --config, or the defaults. An
// explicit --db (or TRADER_DB) switches the journal to that SQLite file.
func (rc *RootConfig) Load(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if rc.ConfigPath != "" {
		var err error
		cfg, err = config.LoadFromFile(rc.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if rc.dbSet {
		cfg.Journal = config.JournalConfig{Type: string(journal.KindSQLite), DBPath: rc.DBPath}
	}
	return cfg, nil
}

func NewRootCmd() *cobra.Command {
	rc := &RootConfig{}

	cmd := &cobra.Command{
		Use:   "trader",
		Short: "Intraday bar backtester",
		Long: `Trader backtests EMA and Bollinger signal strategies on intraday bars
with fixed-size or martingale position sizing, journals every run and
serves backtests over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global / persistent flags
	cmd.PersistentFlags().StringVar(&rc.ConfigPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&rc.DBPath, "db", "./intraday.db", "SQLite journal database (overrides the config journal)")
	cmd.PersistentFlags().StringVar(&rc.LogLevel, "log-level", "info", "Log level: debug|info|warn|error")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := rc.bind(cmd); err != nil {
			return err
		}
		if _, err := logging.ParseLevel(rc.LogLevel); err != nil {
			return err
		}
		rc.Logger = logging.New(rc.LogLevel, cmd.ErrOrStderr())
		return nil
	}

	cmd.AddCommand(
		newBacktestCmd(rc),
		newConfigCmd(rc),
		newJournalCmd(rc),
		newServeCmd(rc),
		newDataCmd(rc),
		newVersionCmd(),
	)

	return cmd
}

// Execute runs the command tree against os.Args.
func Execute() int {
	return run(NewRootCmd(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(cmd *cobra.Command, args []string, stdout, stderr io.Writer) int {
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}
