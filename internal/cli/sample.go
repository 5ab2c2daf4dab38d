package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"stockBacktester/internal/marketdata"
)

func newSampleCmd(a *app) *cobra.Command {
	var (
		window windowFlags
		format string
		dir    string
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Generate deterministic sample bars and store them as CSV, Parquet or ClickHouse rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			window.source = ""
			if err := window.apply(a); err != nil {
				return err
			}
			if dir == "" {
				dir = a.cfg.Data.Dir
			}
			start, err := a.cfg.Backtest.Start()
			if err != nil {
				return err
			}
			end, err := a.cfg.Backtest.End()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			writer, release, err := a.openWriter(ctx, format, dir)
			if err != nil {
				return err
			}
			defer release()

			provider := marketdata.NewSampleProvider(a.cfg.Strategy.Tickers...)
			for _, symbol := range a.cfg.Strategy.Tickers {
				bars, err := provider.GetOHLCV(ctx, symbol, start, end)
				if err != nil {
					return err
				}
				if err := writer.WriteBars(ctx, symbol, bars); err != nil {
					return fmt.Errorf("write %s: %w", symbol, err)
				}
				a.log.Info(ctx, "Sample bars written", map[string]interface{}{"symbol": symbol, "bars": len(bars), "format": format})
				fmt.Fprintf(a.out, "%s: %d bars\n", symbol, len(bars))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&window.tickers, "tickers", "t", nil, "comma separated symbols (overrides config)")
	cmd.Flags().StringVar(&window.start, "start", "", "first day, YYYY-MM-DD (overrides config)")
	cmd.Flags().StringVar(&window.end, "end", "", "last day, YYYY-MM-DD (overrides config)")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format: csv, parquet, clickhouse")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "output directory for file formats (default: data.dir)")
	return cmd
}
