package cli

import (
	"context"
	"fmt"
	"time"

	"stockBacktester/config"
	"stockBacktester/internal/adapters/binanceclient"
	"stockBacktester/internal/adapters/clickhouse"
	"stockBacktester/internal/adapters/csvstore"
	"stockBacktester/internal/adapters/parquetstore"
	"stockBacktester/internal/adapters/sqlite"
	"stockBacktester/internal/domain"
	"stockBacktester/internal/marketdata"
	"stockBacktester/internal/ports"
)

func nopClose() error { return nil }

// openProvider returns the configured market data source and its release func.
func (a *app) openProvider(ctx context.Context) (ports.MarketDataProvider, func() error, error) {
	d := a.cfg.Data
	switch d.Source {
	case config.SourceSample:
		return marketdata.NewSampleProvider(a.cfg.Strategy.Tickers...), nopClose, nil
	case config.SourceCSV:
		return csvstore.New(d.Dir), nopClose, nil
	case config.SourceParquet:
		return parquetstore.New(d.Dir), nopClose, nil
	case config.SourceClickHouse:
		conn, err := clickhouse.NewConn(ctx, d.ClickHouseDSN)
		if err != nil {
			return nil, nil, err
		}
		return clickhouse.NewBarStore(conn, d.UseAdjustedClose, "stockBacktester"), conn.Close, nil
	case config.SourceBinance:
		client, err := binanceclient.New(binanceclient.Config{
			APIKey:     a.cfg.Binance.APIKey,
			SecretKey:  a.cfg.Binance.SecretKey,
			UseTestnet: a.cfg.Binance.UseTestnet,
			Logger:     a.log,
			RetryDelay: time.Duration(d.RetryDelaySeconds) * time.Second,
			MaxRetries: d.MaxRetries,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, nopClose, nil
	default:
		return nil, nil, fmt.Errorf("unknown data source %q: %w", d.Source, ports.ErrConfigurationError)
	}
}

// openWriter returns a bar sink for format, one of csv, parquet or clickhouse.
func (a *app) openWriter(ctx context.Context, format, dir string) (ports.BarWriter, func() error, error) {
	switch format {
	case config.SourceCSV:
		return csvstore.New(dir), nopClose, nil
	case config.SourceParquet:
		return parquetstore.New(dir), nopClose, nil
	case config.SourceClickHouse:
		conn, err := clickhouse.NewConn(ctx, a.cfg.Data.ClickHouseDSN)
		if err != nil {
			return nil, nil, err
		}
		store := clickhouse.NewBarStore(conn, a.cfg.Data.UseAdjustedClose, "sample")
		if err := store.InitSchema(ctx); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return store, conn.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported output format %q: %w", format, ports.ErrInvalidRequest)
	}
}

// loadSeries fetches the configured tickers for the backtest window, in ticker order.
func (a *app) loadSeries(ctx context.Context) ([]domain.Series, time.Time, time.Time, error) {
	start, err := a.cfg.Backtest.Start()
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	end, err := a.cfg.Backtest.End()
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}

	provider, release, err := a.openProvider(ctx)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	defer release()

	series, err := marketdata.NewLoader(provider, a.log).Load(ctx, a.cfg.Strategy.Tickers, start, end)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	return series, start, end, nil
}

func (a *app) openRepository() (*sqlite.Repository, error) {
	return sqlite.NewRepository(sqlite.Config{DBPath: a.cfg.Database.Path, Logger: a.log})
}
