// Command analyze_runs tabulates stored backtest runs with a per-symbol
// breakdown of their realized trades.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"stockBacktester/config"
	"stockBacktester/internal/adapters/logger"
	"stockBacktester/internal/adapters/sqlite"
	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
	"stockBacktester/internal/strategy/analytics"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	limit := flag.Int("limit", 0, "number of most recent runs to analyze; 0 analyzes all")
	strategy := flag.String("strategy", "", "only analyze runs of this strategy")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.Level())

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.Database.Path, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open run database: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	runs, err := repo.ListRuns(ctx, *limit)
	if err != nil {
		log.Fatalf("Error listing runs: %v", err)
	}
	runs = filterRuns(runs, *strategy)
	if len(runs) == 0 {
		log.Println("No runs found. Store one with `stockBacktester run --save` first.")
		return
	}

	// Create a tabwriter for formatted output
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Run\tStrategy\tSells\tWinRate\tAvgProfit\tAvgLoss\tPF\tReturn\tMaxDD\t")
	for _, r := range runs {
		m := r.Metrics
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%s\t%s\t%s\t%.2f\t%.2f\t\n",
			shortID(r.ID), r.Strategy, m.TotalTrades, m.WinRate,
			analytics.FormatMoney(m.AvgProfit), analytics.FormatMoney(m.AvgLoss),
			analytics.FormatRatio(m.ProfitFactor), m.TotalReturn, m.MaxDrawdown)
	}
	w.Flush()

	fmt.Println("\n## Per-Symbol Analysis")
	for _, r := range runs {
		trades, err := repo.TradesForRun(ctx, r.ID)
		if err != nil {
			log.Printf("Error reading trades of %s: %v", r.ID, err)
			continue
		}
		printSymbolStats(r, calculateSymbolStats(trades))
	}
}

// SymbolStats holds the realized results of one symbol within a run.
type SymbolStats struct {
	Symbol      string
	Buys        int
	Sells       int
	Wins        int
	TotalProfit float64
	Costs       float64 // Commission plus tax
}

// calculateSymbolStats groups trades by symbol, ordered by total profit.
func calculateSymbolStats(trades []domain.TradeRecord) []SymbolStats {
	bySymbol := make(map[string]*SymbolStats)
	for _, t := range trades {
		s, ok := bySymbol[t.Symbol]
		if !ok {
			s = &SymbolStats{Symbol: t.Symbol}
			bySymbol[t.Symbol] = s
		}
		s.Costs += t.Commission + t.Tax
		if !t.IsSell() {
			s.Buys++
			continue
		}
		s.Sells++
		s.TotalProfit += t.Profit
		if t.Profit > 0 {
			s.Wins++
		}
	}

	stats := make([]SymbolStats, 0, len(bySymbol))
	for _, s := range bySymbol {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].TotalProfit != stats[j].TotalProfit {
			return stats[i].TotalProfit > stats[j].TotalProfit
		}
		return stats[i].Symbol < stats[j].Symbol
	})
	return stats
}

func printSymbolStats(r *ports.RunRecord, stats []SymbolStats) {
	fmt.Printf("\nRun: %s (%s, %s ~ %s)\n", r.ID, r.Strategy,
		r.StartDate.Format(domain.DateLayout), r.EndDate.Format(domain.DateLayout))
	if len(stats) == 0 {
		fmt.Println("No trades recorded")
		return
	}
	fmt.Println("Symbol\tBuys\tSells\tWins\tProfit\tCosts")
	for _, s := range stats {
		fmt.Printf("%s\t%d\t%d\t%d\t%s\t%s\n", s.Symbol, s.Buys, s.Sells, s.Wins,
			analytics.FormatMoney(s.TotalProfit), analytics.FormatMoney(s.Costs))
	}
}

func filterRuns(runs []*ports.RunRecord, strategy string) []*ports.RunRecord {
	if strategy == "" {
		return runs
	}
	var out []*ports.RunRecord
	for _, r := range runs {
		if strings.EqualFold(r.Strategy, strategy) {
			out = append(out, r)
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
