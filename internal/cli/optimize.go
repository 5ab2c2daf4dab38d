package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"stockBacktester/internal/ports"
	"stockBacktester/internal/strategy/analytics"
	"stockBacktester/internal/strategy/optimization"
)

func newOptimizeCmd(a *app) *cobra.Command {
	var (
		window   windowFlags
		strategy string
		ranges   []string
		workers  int
		top      int
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Sweep strategy parameters and rank the runs by score",
		Example: `  stockBacktester optimize --strategy ma_cross --range ma_period=20:120:20:int
  stockBacktester optimize --strategy split_buy --range buy_threshold=1:3:0.5 --range sell_profit_rate=2:6:1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strategy != "" && strategy != a.cfg.Strategy.Name {
				a.cfg.Strategy.Name = strategy
				a.cfg.Strategy.Params = nil
			}
			if err := window.apply(a); err != nil {
				return err
			}
			if len(ranges) == 0 {
				return fmt.Errorf("at least one --range is required: %w", ports.ErrInvalidRequest)
			}

			parsed := make([]optimization.ParameterRange, 0, len(ranges))
			for _, raw := range ranges {
				r, err := parseRange(raw)
				if err != nil {
					return err
				}
				parsed = append(parsed, r)
			}

			ctx := cmd.Context()
			series, start, end, err := a.loadSeries(ctx)
			if err != nil {
				return err
			}

			optimizer := optimization.NewOptimizer(optimization.OptimizerConfig{
				Strategy:        a.cfg.Strategy.Name,
				BaseParams:      a.cfg.Strategy.Params,
				ParameterRanges: parsed,
				Engine:          a.cfg.Backtest.EngineConfig(),
				Start:           start,
				End:             end,
				Workers:         workers,
			}, a.registry, a.log)

			results, err := optimizer.Optimize(ctx, series)
			if err != nil {
				return err
			}
			if top > 0 && len(results) > top {
				results = results[:top]
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tSCORE\tPARAMETERS\tRETURN %\tSHARPE\tMDD %\tWIN %\tPF")
			for i, r := range results {
				pairs := make([]string, 0, len(r.Parameters))
				for _, k := range r.Parameters.Keys() {
					pairs = append(pairs, fmt.Sprintf("%s=%v", k, r.Parameters[k]))
				}
				m := r.Metrics
				fmt.Fprintf(tw, "%d\t%.4f\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
					i+1, r.Score, strings.Join(pairs, " "), m.TotalReturn, m.SharpeRatio, m.MaxDrawdown, m.WinRate,
					analytics.FormatRatio(m.ProfitFactor))
			}
			return tw.Flush()
		},
	}

	window.register(cmd)
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "strategy name (overrides config)")
	cmd.Flags().StringArrayVarP(&ranges, "range", "r", nil, "parameter range name=min:max:step[:int] (repeatable)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent backtests (default: GOMAXPROCS)")
	cmd.Flags().IntVar(&top, "top", 10, "number of results to print; 0 prints all")
	return cmd
}

// parseRange parses name=min:max:step with an optional trailing ":int".
func parseRange(raw string) (optimization.ParameterRange, error) {
	name, bounds, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return optimization.ParameterRange{}, fmt.Errorf("range %q: expected name=min:max:step: %w", raw, ports.ErrInvalidParameter)
	}

	parts := strings.Split(bounds, ":")
	r := optimization.ParameterRange{Name: strings.TrimSpace(name)}
	if len(parts) == 4 {
		if parts[3] != "int" {
			return r, fmt.Errorf("range %q: unknown suffix %q: %w", raw, parts[3], ports.ErrInvalidParameter)
		}
		r.IsInt = true
		parts = parts[:3]
	}
	if len(parts) != 3 {
		return r, fmt.Errorf("range %q: expected min:max:step: %w", raw, ports.ErrInvalidParameter)
	}

	values := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return r, fmt.Errorf("range %q: %v: %w", raw, err, ports.ErrInvalidParameter)
		}
		values[i] = v
	}
	r.Min, r.Max, r.Step = values[0], values[1], values[2]
	return r, nil
}
