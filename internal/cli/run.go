package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
	"stockBacktester/internal/strategy/analytics"
	"stockBacktester/internal/strategy/backtesting"
	"stockBacktester/internal/strategy/strategies"
	"stockBacktester/internal/utils"
)

// windowFlags are the overrides shared by commands that run backtests.
type windowFlags struct {
	tickers []string
	start   string
	end     string
	cash    float64
	source  string
}

func (w *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&w.tickers, "tickers", "t", nil, "comma separated symbols (overrides config)")
	cmd.Flags().StringVar(&w.start, "start", "", "first day, YYYY-MM-DD (overrides config)")
	cmd.Flags().StringVar(&w.end, "end", "", "last day, YYYY-MM-DD (overrides config)")
	cmd.Flags().Float64Var(&w.cash, "cash", 0, "initial cash (overrides config)")
	cmd.Flags().StringVar(&w.source, "source", "", "data source: sample, csv, parquet, clickhouse, binance")
}

func (w *windowFlags) apply(a *app) error {
	if len(w.tickers) > 0 {
		a.cfg.Strategy.Tickers = w.tickers
	}
	if w.start != "" {
		a.cfg.Backtest.StartDate = w.start
	}
	if w.end != "" {
		a.cfg.Backtest.EndDate = w.end
	}
	if w.cash > 0 {
		a.cfg.Backtest.InitialCash = w.cash
	}
	if w.source != "" {
		a.cfg.Data.Source = w.source
	}
	return a.cfg.Validate()
}

func newRunCmd(a *app) *cobra.Command {
	var (
		window     windowFlags
		strategy   string
		params     map[string]string
		save       bool
		showTrades bool
		tradesCSV  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one strategy over the configured window",
		Example: `  stockBacktester run --strategy ma_cross --param ma_period=60 --tickers 005930.KS
  stockBacktester run --config config.yaml --save --trades`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strategy != "" && strategy != a.cfg.Strategy.Name {
				// Configured params belong to the configured strategy.
				a.cfg.Strategy.Name = strategy
				a.cfg.Strategy.Params = nil
			}
			if err := window.apply(a); err != nil {
				return err
			}
			ctx := cmd.Context()

			series, start, end, err := a.loadSeries(ctx)
			if err != nil {
				return err
			}
			merged := strategies.Params(a.cfg.Strategy.Params).Merge(stringParams(params))
			report, err := a.backtest(ctx, a.cfg.Strategy.Name, merged, series, start, end)
			if err != nil {
				return err
			}
			if report == nil {
				fmt.Fprintln(a.out, "No trading days in the requested window.")
				return nil
			}

			printReport(a.out, report, series)
			if showTrades {
				printTrades(a.out, report.Trades)
			}
			if tradesCSV != "" {
				if err := utils.WriteTradesToCSV(report.Trades, tradesCSV); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Trades written to %s\n", tradesCSV)
			}
			if save {
				id, err := a.saveReport(ctx, report, merged, series)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Saved run %s\n", id)
			}
			return nil
		},
	}

	window.register(cmd)
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "strategy name (overrides config)")
	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "strategy parameter override, key=value (repeatable)")
	cmd.Flags().BoolVar(&save, "save", false, "store the run in the SQLite database")
	cmd.Flags().BoolVar(&showTrades, "trades", false, "print every trade")
	cmd.Flags().StringVar(&tradesCSV, "trades-csv", "", "write trades to this CSV file")
	return cmd
}

func newCompareCmd(a *app) *cobra.Command {
	var (
		window windowFlags
		names  []string
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run several strategies over the same data and tabulate the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := window.apply(a); err != nil {
				return err
			}
			if len(names) == 0 {
				names = a.registry.Names()
			}
			ctx := cmd.Context()

			series, start, end, err := a.loadSeries(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "STRATEGY\tRETURN %\tANNUAL %\tSHARPE\tMDD %\tWIN %\tSELLS\tPF\tFINAL VALUE\t")
			for _, name := range names {
				var params strategies.Params
				if name == a.cfg.Strategy.Name {
					params = a.cfg.Strategy.Params
				}
				report, err := a.backtest(ctx, name, params, series, start, end)
				if err != nil {
					return err
				}
				if report == nil {
					fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\t-\t-\t\n", name)
					continue
				}
				m := report.Metrics
				fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%s\t%s\t\n",
					name, m.TotalReturn, m.AnnualReturn, m.SharpeRatio, m.MaxDrawdown, m.WinRate,
					m.TotalTrades, analytics.FormatRatio(m.ProfitFactor), analytics.FormatMoney(report.FinalValue()))
			}
			return tw.Flush()
		},
	}

	window.register(cmd)
	cmd.Flags().StringSliceVar(&names, "strategies", nil, "strategies to compare (default: all registered)")
	return cmd
}

// backtest runs one strategy and returns its report, or nil when the window
// holds no trading days.
func (a *app) backtest(ctx context.Context, name string, params strategies.Params, series []domain.Series, start, end time.Time) (*backtesting.Report, error) {
	runLogger := a.log.With(map[string]interface{}{"strategy": name})
	strategy, err := a.registry.New(name, params, runLogger)
	if err != nil {
		return nil, err
	}

	engine := backtesting.NewEngine(a.cfg.Backtest.EngineConfig(), runLogger)
	if _, err := engine.Run(ctx, strategy, series, start, end); err != nil {
		return nil, err
	}
	if engine.State() != backtesting.StateCompleted {
		return nil, nil
	}
	return engine.Report()
}

func (a *app) saveReport(ctx context.Context, report *backtesting.Report, params strategies.Params, series []domain.Series) (string, error) {
	repo, err := a.openRepository()
	if err != nil {
		return "", err
	}
	defer repo.Close()

	run := &ports.RunRecord{
		Strategy:    report.Strategy,
		Params:      params,
		Symbols:     seriesSymbols(series),
		StartDate:   report.StartDate,
		EndDate:     report.EndDate,
		InitialCash: report.Summary.InitialCash,
		FinalValue:  report.FinalValue(),
		Metrics:     report.Metrics,
	}
	return repo.SaveRun(ctx, run, report.Trades, report.DailyValues)
}

func printReport(w io.Writer, report *backtesting.Report, series []domain.Series) {
	fmt.Fprintf(w, "Strategy: %s\n", report.Strategy)
	fmt.Fprintf(w, "Symbols:  %s\n", strings.Join(seriesSymbols(series), ", "))
	fmt.Fprintf(w, "Period:   %s ~ %s (%d trading days)\n\n",
		report.StartDate.Format(domain.DateLayout), report.EndDate.Format(domain.DateLayout), report.TradingDays)
	fmt.Fprintln(w, report.Metrics.Summary())

	s := report.Summary
	fmt.Fprintf(w, "Initial cash:   %s\n", analytics.FormatMoney(s.InitialCash))
	fmt.Fprintf(w, "Final value:    %s\n", analytics.FormatMoney(report.FinalValue()))
	fmt.Fprintf(w, "Cash:           %s\n", analytics.FormatMoney(s.CurrentCash))
	fmt.Fprintf(w, "Invested:       %s\n", analytics.FormatMoney(s.TotalInvested))
	fmt.Fprintf(w, "Open positions: %d\n", s.HoldingCount)
	fmt.Fprintf(w, "Fills:          %d\n", s.TradeCount)

	printEquity(w, report.Equity)
}

// maxListedDrawdowns bounds the drawdown table to the deepest episodes.
const maxListedDrawdowns = 5

func printEquity(w io.Writer, eq analytics.EquityAnalysis) {
	if len(eq.MonthlyReturns) > 0 {
		fmt.Fprintln(w, "\nMonthly returns:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "MONTH\tRETURN %\t")
		for _, m := range eq.MonthlyReturns {
			fmt.Fprintf(tw, "%s\t%.2f\t\n", m.Month.Format("2006-01"), m.Return)
		}
		tw.Flush()
	}

	if len(eq.Drawdowns) == 0 {
		return
	}
	deepest := make([]analytics.Drawdown, len(eq.Drawdowns))
	copy(deepest, eq.Drawdowns)
	sort.SliceStable(deepest, func(i, j int) bool { return deepest[i].Depth > deepest[j].Depth })
	if len(deepest) > maxListedDrawdowns {
		deepest = deepest[:maxListedDrawdowns]
	}

	fmt.Fprintf(w, "\nDrawdowns (%d episodes, deepest first):\n", len(eq.Drawdowns))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PEAK\tEND\tDEPTH %\tTROUGH\tRECOVERED")
	for _, d := range deepest {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%t\n",
			d.StartTime.Format(domain.DateLayout), d.EndTime.Format(domain.DateLayout), d.Depth,
			analytics.FormatMoney(d.Trough), d.Recovered)
	}
	tw.Flush()
}

func printTrades(w io.Writer, trades []domain.TradeRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSYMBOL\tSIDE\tQTY\tPRICE\tPROFIT\tREASON")
	for _, t := range trades {
		profit := "-"
		if t.IsSell() {
			profit = analytics.FormatMoney(t.Profit)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			t.Date.Format(domain.DateLayout), t.Symbol, t.Side, t.Quantity, analytics.FormatMoney(t.Price), profit, t.Reason)
	}
	tw.Flush()
}

func seriesSymbols(series []domain.Series) []string {
	out := make([]string, len(series))
	for i, s := range series {
		out[i] = s.Symbol
	}
	return out
}

func stringParams(m map[string]string) strategies.Params {
	out := make(strategies.Params, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
