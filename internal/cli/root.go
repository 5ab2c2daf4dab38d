// Package cli wires configuration, data sources and the backtest engine into
// the stockBacktester command line.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stockBacktester/config"
	"stockBacktester/internal/adapters/logger"
	"stockBacktester/internal/strategy/strategies"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	configPath string
	logLevel   string

	cfg      *config.Config
	log      *logger.Logger
	registry *strategies.Registry
	out      io.Writer
}

// Execute runs the root command, cancelling on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the command tree with the built-in strategies registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{registry: strategies.NewBuiltinRegistry()})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stockBacktester",
		Short: "Daily bar backtesting for equity strategies",
		Long: `stockBacktester replays daily OHLCV history against rule-based strategies
and reports return, risk and trade statistics.

Data can come from generated sample bars, CSV or Parquet files, ClickHouse or
Binance. Completed runs can be stored in SQLite and inspected later.

Example:
  stockBacktester run --strategy split_buy --tickers 005930.KS,000660.KS --save`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.log != nil {
				return a.log.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(
		newRunCmd(a),
		newCompareCmd(a),
		newStrategiesCmd(a),
		newOptimizeCmd(a),
		newSampleCmd(a),
		newRunsCmd(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	logCfg := cfg.LoggerConfig()
	logCfg.Output = cmd.ErrOrStderr()
	log, err := logger.New(logCfg)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	a.out = cmd.OutOrStdout()
	return nil
}
