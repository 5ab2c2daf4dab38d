package optimization

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockBacktester/internal/adapters/logger"
	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
	"stockBacktester/internal/strategy/analytics"
	"stockBacktester/internal/strategy/backtesting"
	"stockBacktester/internal/strategy/strategies"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// testSeries rises for 20 days, falls for 10 and recovers for 10.
func testSeries() []domain.Series {
	var bars []domain.Bar
	price := 10_000.0
	for i := 0; i < 40; i++ {
		switch {
		case i < 20:
			price *= 1.01
		case i < 30:
			price *= 0.98
		default:
			price *= 1.015
		}
		bars = append(bars, domain.Bar{
			Date: start.AddDate(0, 0, i), Open: price, High: price, Low: price, Close: price, Volume: 50_000,
		})
	}
	return []domain.Series{{Symbol: "AAA", Bars: bars}}
}

func newOptimizer(cfg OptimizerConfig) *Optimizer {
	if cfg.Strategy == "" {
		cfg.Strategy = strategies.MACrossName
	}
	cfg.Engine = backtesting.DefaultConfig()
	cfg.Start = start
	cfg.End = start.AddDate(0, 0, 39)
	return NewOptimizer(cfg, strategies.NewBuiltinRegistry(), logger.NewNop())
}

func TestOptimizer(t *testing.T) {
	optimizer := newOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{
			{Name: "ma_period", Min: 2, Max: 4, Step: 1, IsInt: true},
			{Name: "position_size_pct", Min: 50, Max: 100, Step: 25},
		},
		Workers: 3,
	})

	results, err := optimizer.Optimize(context.Background(), testSeries())
	require.NoError(t, err)

	// 3 values for ma_period * 3 values for position_size_pct
	require.Len(t, results, 9)

	seen := make(map[[2]float64]bool)
	for i, r := range results {
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score, "results must be sorted by score")
		}
		period, ok := r.Parameters["ma_period"].(int)
		require.True(t, ok, "integer ranges produce int params")
		pct, ok := r.Parameters["position_size_pct"].(float64)
		require.True(t, ok)
		seen[[2]float64{float64(period), pct}] = true
		assert.Equal(t, DefaultScoreFunction(r.Metrics), r.Score)
	}
	assert.Len(t, seen, 9, "every combination appears once")
}

func TestOptimizer_SkipsRejectedCombinations(t *testing.T) {
	optimizer := newOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{{Name: "ma_period", Min: 0, Max: 2, Step: 1, IsInt: true}},
		Workers:         1,
	})

	results, err := optimizer.Optimize(context.Background(), testSeries())
	require.NoError(t, err)
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, 0, r.Parameters["ma_period"])
	}
}

func TestOptimizer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     OptimizerConfig
		wantErr error
	}{
		{
			name:    "unknown strategy",
			cfg:     OptimizerConfig{Strategy: "nope"},
			wantErr: ports.ErrUnknownStrategy,
		},
		{
			name: "zero step",
			cfg: OptimizerConfig{ParameterRanges: []ParameterRange{
				{Name: "ma_period", Min: 1, Max: 3, Step: 0},
			}},
			wantErr: ports.ErrInvalidParameter,
		},
		{
			name: "inverted range",
			cfg: OptimizerConfig{ParameterRanges: []ParameterRange{
				{Name: "ma_period", Min: 5, Max: 3, Step: 1},
			}},
			wantErr: ports.ErrInvalidParameter,
		},
		{
			name: "every combination rejected",
			cfg: OptimizerConfig{ParameterRanges: []ParameterRange{
				{Name: "position_size_pct", Min: -2, Max: -1, Step: 1},
			}},
			wantErr: ports.ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := newOptimizer(tt.cfg).Optimize(context.Background(), testSeries())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, results)
		})
	}
}

func TestOptimizer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	optimizer := newOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{{Name: "ma_period", Min: 2, Max: 10, Step: 1, IsInt: true}},
	})
	_, err := optimizer.Optimize(ctx, testSeries())
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}

func TestOptimizer_BaseParamsApplyToEveryRun(t *testing.T) {
	var scored []analytics.Metrics
	optimizer := newOptimizer(OptimizerConfig{
		BaseParams:      strategies.Params{"ma_period": 3},
		ParameterRanges: []ParameterRange{{Name: "position_size_pct", Min: 100, Max: 100, Step: 1}},
		Workers:         1,
		ScoreFunction: func(m analytics.Metrics) float64 {
			scored = append(scored, m)
			return m.TotalReturn
		},
	})

	results, err := optimizer.Optimize(context.Background(), testSeries())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, scored, 1)
	assert.Equal(t, scored[0].TotalReturn, results[0].Score)
	assert.NotContains(t, results[0].Parameters, "ma_period", "only swept values are reported")
}

func TestOptimizer_EqualScoresKeepSweepOrder(t *testing.T) {
	optimizer := newOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{{Name: "ma_period", Min: 2, Max: 7, Step: 1, IsInt: true}},
		Workers:         4,
		ScoreFunction:   func(analytics.Metrics) float64 { return 1 },
	})

	for attempt := 0; attempt < 3; attempt++ {
		results, err := optimizer.Optimize(context.Background(), testSeries())
		require.NoError(t, err)
		require.Len(t, results, 6)
		for i, r := range results {
			assert.Equal(t, i+2, r.Parameters["ma_period"])
		}
	}
}

func TestSortResultsByScore(t *testing.T) {
	results := []OptimizationResult{
		{Score: 1, index: 3},
		{Score: 2, index: 4},
		{Score: 1, index: 0},
		{Score: 2, index: 1},
	}
	sortResultsByScore(results)

	var order []int
	for _, r := range results {
		order = append(order, r.index)
	}
	assert.Equal(t, []int{1, 4, 0, 3}, order)
}

func TestParameterRange_Values(t *testing.T) {
	tests := []struct {
		name string
		r    ParameterRange
		want []float64
	}{
		{"ints", ParameterRange{Name: "p", Min: 1, Max: 3, Step: 1, IsInt: true}, []float64{1, 2, 3}},
		{"fractional steps reach max", ParameterRange{Name: "p", Min: 0.1, Max: 0.3, Step: 0.1}, []float64{0.1, 0.2, 0.3}},
		{"single value", ParameterRange{Name: "p", Min: 5, Max: 5, Step: 1}, []float64{5}},
		{"step overshooting max", ParameterRange{Name: "p", Min: 0, Max: 10, Step: 4}, []float64{0, 4, 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.r.Values()
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9)
			}
		})
	}
}

func TestDefaultScoreFunction(t *testing.T) {
	base := analytics.Metrics{WinRate: 50, ProfitFactor: 2, MaxDrawdown: 10, TotalReturn: 20, SharpeRatio: 1}
	assert.InDelta(t, 0.15+0.4+0.18+0.04+0.1, DefaultScoreFunction(base), 1e-9)

	noLosses := base
	noLosses.ProfitFactor = math.Inf(1)
	capped := base
	capped.ProfitFactor = maxScoredProfitFactor
	assert.Equal(t, DefaultScoreFunction(capped), DefaultScoreFunction(noLosses))
	assert.False(t, math.IsInf(DefaultScoreFunction(noLosses), 0))
}
