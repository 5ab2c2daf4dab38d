// Command fetch_bars downloads daily bars from Binance into CSV files, Parquet
// files or ClickHouse.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"stockBacktester/config"
	"stockBacktester/internal/adapters/binanceclient"
	"stockBacktester/internal/adapters/clickhouse"
	"stockBacktester/internal/adapters/csvstore"
	"stockBacktester/internal/adapters/logger"
	"stockBacktester/internal/adapters/parquetstore"
	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	symbolsFlag := flag.String("symbols", "", "comma separated symbols (default: strategy.tickers)")
	startFlag := flag.String("start", "", "first day, YYYY-MM-DD (default: end minus data.default_lookback_days)")
	endFlag := flag.String("end", "", "last day, YYYY-MM-DD (default: today)")
	out := flag.String("out", "csv", "destination: csv, parquet or clickhouse")
	dir := flag.String("dir", "", "output directory for csv and parquet (default: data.dir)")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.Level())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// 3. Initialize Exchange Client (Binance Adapter)
	client, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.Binance.APIKey,
		SecretKey:  cfg.Binance.SecretKey,
		UseTestnet: cfg.Binance.UseTestnet,
		Logger:     appLogger,
		RetryDelay: time.Duration(cfg.Data.RetryDelaySeconds) * time.Second,
		MaxRetries: cfg.Data.MaxRetries,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	end := domain.Day(time.Now().UTC())
	if *endFlag != "" {
		if end, err = domain.ParseDay(*endFlag); err != nil {
			log.Fatalf("Invalid -end %q: %v", *endFlag, err)
		}
	}
	start := end.AddDate(0, 0, -cfg.Data.DefaultLookbackDays)
	if *startFlag != "" {
		if start, err = domain.ParseDay(*startFlag); err != nil {
			log.Fatalf("Invalid -start %q: %v", *startFlag, err)
		}
	}

	symbols := cfg.Strategy.Tickers
	if *symbolsFlag != "" {
		symbols = strings.Split(*symbolsFlag, ",")
	}
	if *dir == "" {
		*dir = cfg.Data.Dir
	}

	// 4. Open the destination
	var (
		writer ports.BarWriter
		store  *clickhouse.BarStore
	)
	switch *out {
	case "csv":
		writer = csvstore.New(*dir)
	case "parquet":
		writer = parquetstore.New(*dir)
	case "clickhouse":
		conn, err := clickhouse.NewConn(ctx, cfg.Data.ClickHouseDSN)
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		defer conn.Close()
		store = clickhouse.NewBarStore(conn, cfg.Data.UseAdjustedClose, "binance")
		if err := store.InitSchema(ctx); err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		writer = store
	default:
		log.Fatalf("Unknown -out %q", *out)
	}

	failed := 0
	for _, symbol := range symbols {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}

		from := start
		if store != nil {
			// Resume after the last ingested day.
			last, ok, err := store.LastIngestedDate(ctx, symbol)
			if err != nil {
				appLogger.Error(ctx, err, "Failed to read ingestion log", map[string]interface{}{"symbol": symbol})
			} else if ok && !last.Before(from) {
				from = last.AddDate(0, 0, 1)
			}
		}
		if from.After(end) {
			fmt.Printf("%s: up to date\n", symbol)
			continue
		}

		bars, err := client.GetOHLCV(ctx, symbol, from, end)
		if err != nil {
			appLogger.Error(ctx, err, "Error fetching bars", map[string]interface{}{"symbol": symbol})
			failed++
			continue
		}
		if len(bars) == 0 {
			fmt.Printf("%s: no bars between %s and %s\n", symbol, from.Format(domain.DateLayout), end.Format(domain.DateLayout))
			continue
		}
		if err := writer.WriteBars(ctx, symbol, bars); err != nil {
			appLogger.Error(ctx, err, "Error writing bars", map[string]interface{}{"symbol": symbol})
			failed++
			continue
		}
		fmt.Printf("%s: %d bars (%s ~ %s) -> %s\n", symbol, len(bars),
			bars[0].Date.Format(domain.DateLayout), bars[len(bars)-1].Date.Format(domain.DateLayout), *out)
	}

	if failed > 0 {
		log.Fatalf("%d symbol(s) failed", failed)
	}
}
