package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockBacktester/internal/adapters/logger"
	"stockBacktester/internal/ports"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "split_buy", cfg.Strategy.Name)
	assert.Equal(t, "2024-01-01", cfg.Backtest.StartDate)
	assert.Equal(t, "2024-12-31", cfg.Backtest.EndDate)
	assert.Equal(t, 10_000_000.0, cfg.Backtest.InitialCash)
	assert.Equal(t, 0.00015, cfg.Backtest.CommissionRate)
	assert.Equal(t, 0.0023, cfg.Backtest.TaxRate)
	assert.Equal(t, 0.001, cfg.Backtest.SlippageRate)
	assert.Equal(t, 30, cfg.Backtest.Lookback)
	assert.Equal(t, SourceSample, cfg.Data.Source)
	assert.True(t, cfg.Data.UseAdjustedClose)
	assert.Equal(t, 365, cfg.Data.DefaultLookbackDays)
	assert.Equal(t, logger.LevelInfo, cfg.Level())
}

func TestLoad_YAMLInlineParams(t *testing.T) {
	path := writeYAML(t, `
strategy:
  name: ma_cross
  tickers: [AAA, BBB]
  ma_period: 60
  position_size_pct: 50.0
backtest:
  start_date: "2023-01-01"
  end_date: "2023-06-30"
  initial_cash: 5000000
log_level: DEBUG
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ma_cross", cfg.Strategy.Name)
	assert.Equal(t, []string{"AAA", "BBB"}, cfg.Strategy.Tickers)
	assert.Equal(t, 60, cfg.Strategy.Params["ma_period"])
	assert.Equal(t, 50.0, cfg.Strategy.Params["position_size_pct"])
	assert.NotContains(t, cfg.Strategy.Params, "name")
	assert.Equal(t, 5_000_000.0, cfg.Backtest.InitialCash)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, 0.0023, cfg.Backtest.TaxRate)
	assert.Equal(t, logger.LevelDebug, cfg.Level())

	start, err := cfg.Backtest.Start()
	require.NoError(t, err)
	assert.Equal(t, 2023, start.Year())
}

func TestLoad_YAMLExplicitParams(t *testing.T) {
	path := writeYAML(t, `
strategy:
  name: weighted_ma
  tickers: [AAA]
  params:
    weights:
      AAA: 0.6
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	weights, ok := cfg.Strategy.Params["weights"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 0.6, weights["AAA"])
	assert.Len(t, cfg.Strategy.Params, 1)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeYAML(t, `
strategy:
  name: ma_strategy
  tickers: [AAA]
`)
	t.Setenv("STRATEGY_NAME", "split_buy")
	t.Setenv("TICKERS", "X, Y ,,Z")
	t.Setenv("BACKTEST_INITIAL_CASH", "2500000")
	t.Setenv("BACKTEST_LOOKBACK", "0")
	t.Setenv("DATA_SOURCE", "clickhouse")
	t.Setenv("CLICKHOUSE_DSN", "clickhouse://u:p@db:9000/market")
	t.Setenv("USE_ADJUSTED_CLOSE", "false")
	t.Setenv("DB_PATH", "/tmp/runs.db")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "split_buy", cfg.Strategy.Name)
	assert.Equal(t, []string{"X", "Y", "Z"}, cfg.Strategy.Tickers)
	assert.Equal(t, 2_500_000.0, cfg.Backtest.InitialCash)
	assert.Equal(t, 0, cfg.Backtest.Lookback)
	assert.Equal(t, SourceClickHouse, cfg.Data.Source)
	assert.Equal(t, "clickhouse://u:p@db:9000/market", cfg.Data.ClickHouseDSN)
	assert.False(t, cfg.Data.UseAdjustedClose)
	assert.Equal(t, "/tmp/runs.db", cfg.Database.Path)
	assert.Equal(t, "json", cfg.LoggerConfig().Format)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantMsg string
	}{
		{
			name:    "unparseable env number",
			env:     map[string]string{"BACKTEST_INITIAL_CASH": "lots"},
			wantMsg: "BACKTEST_INITIAL_CASH",
		},
		{
			name:    "negative cash",
			yaml:    "backtest:\n  initial_cash: -1\n",
			wantMsg: "initial cash",
		},
		{
			name:    "end before start",
			yaml:    "backtest:\n  start_date: \"2024-02-01\"\n  end_date: \"2024-01-01\"\n",
			wantMsg: "end_date",
		},
		{
			name:    "bad date",
			yaml:    "backtest:\n  start_date: \"01/02/2024\"\n",
			wantMsg: "start_date",
		},
		{
			name:    "unknown source",
			yaml:    "data:\n  source: ftp\n",
			wantMsg: "unknown data.source",
		},
		{
			name:    "file source without dir",
			yaml:    "data:\n  source: csv\n  dir: \"\"\n",
			wantMsg: "data.dir",
		},
		{
			name:    "no tickers",
			yaml:    "strategy:\n  name: split_buy\n  tickers: []\n",
			wantMsg: "tickers",
		},
		{
			name:    "bad log format",
			yaml:    "log_format: xml\n",
			wantMsg: "log_format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeYAML(t, tt.yaml)
			}

			cfg, err := Load(path)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, ports.ErrConfigurationError)
			assert.True(t, IsConfigError(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad_MissingAndMalformedFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = Load(writeYAML(t, "strategy: [unterminated"))
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestBacktestConfig_EngineConfig(t *testing.T) {
	b := Default().Backtest
	b.Lookback = 45
	ec := b.EngineConfig()
	assert.Equal(t, b.InitialCash, ec.InitialCash)
	assert.Equal(t, 45, ec.Lookback)
	assert.NoError(t, ec.Validate())
}
