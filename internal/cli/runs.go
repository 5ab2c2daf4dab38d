package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/strategy/analytics"
)

func newRunsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored backtest runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			runs, err := repo.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.out, "No runs stored.")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSTRATEGY\tSYMBOLS\tPERIOD\tRETURN %\tSHARPE\tMDD %\tFINAL VALUE")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s~%s\t%.2f\t%.2f\t%.2f\t%s\n",
					r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Strategy, strings.Join(r.Symbols, ","),
					r.StartDate.Format(domain.DateLayout), r.EndDate.Format(domain.DateLayout),
					r.Metrics.TotalReturn, r.Metrics.SharpeRatio, r.Metrics.MaxDrawdown, analytics.FormatMoney(r.FinalValue))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list; 0 lists all")

	cmd.AddCommand(newRunsShowCmd(a), newRunsDeleteCmd(a))
	return cmd
}

func newRunsShowCmd(a *app) *cobra.Command {
	var showTrades bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print the metrics of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx := cmd.Context()
			run, err := repo.GetRun(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Run:      %s\n", run.ID)
			fmt.Fprintf(a.out, "Strategy: %s\n", run.Strategy)
			fmt.Fprintf(a.out, "Symbols:  %s\n", strings.Join(run.Symbols, ", "))
			fmt.Fprintf(a.out, "Period:   %s ~ %s\n", run.StartDate.Format(domain.DateLayout), run.EndDate.Format(domain.DateLayout))
			fmt.Fprintf(a.out, "Params:   %v\n\n", run.Params)
			fmt.Fprintln(a.out, run.Metrics.Summary())
			fmt.Fprintf(a.out, "Initial cash: %s\n", analytics.FormatMoney(run.InitialCash))
			fmt.Fprintf(a.out, "Final value:  %s\n", analytics.FormatMoney(run.FinalValue))

			if showTrades {
				trades, err := repo.TradesForRun(ctx, run.ID)
				if err != nil {
					return err
				}
				printTrades(a.out, trades)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showTrades, "trades", false, "print the stored trades")
	return cmd
}

func newRunsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored run with its trades and valuations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted run %s\n", args[0])
			return nil
		},
	}
}
