package sqlite

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
	"stockBacktester/internal/strategy/analytics"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}
func (m *mockLogger) With(fields map[string]interface{}) ports.Logger { return m }

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "backtester-test-*")
	require.NoError(t, err)

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(tmpDir, "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}
	return repo, cleanup
}

func day(i int) time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i) }

func sampleRun(strategy string, created time.Time) *ports.RunRecord {
	return &ports.RunRecord{
		Strategy:    strategy,
		Params:      map[string]interface{}{"split_count": 5, "buy_threshold": 2.5},
		Symbols:     []string{"005930.KS", "000660.KS"},
		StartDate:   day(0),
		EndDate:     day(9),
		InitialCash: 10_000_000,
		FinalValue:  10_450_000,
		CreatedAt:   created,
		Metrics: analytics.Metrics{
			TotalReturn:          4.5,
			AnnualReturn:         180.2,
			SharpeRatio:          1.7,
			MaxDrawdown:          2.1,
			WinRate:              100,
			AvgProfit:            450_000,
			ProfitFactor:         math.Inf(1),
			TotalTrades:          1,
			WinningTrades:        1,
			AvgHoldingDays:       3,
			MaxConsecutiveWins:   1,
			MaxConsecutiveLosses: 0,
		},
	}
}

func TestRepository_SaveAndGetRun(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	trades := []domain.TradeRecord{
		{Date: day(1), Symbol: "005930.KS", Side: domain.Buy, Quantity: 100, Price: 70_000, Commission: 1_050, Reason: "dip"},
		{Date: day(4), Symbol: "005930.KS", Side: domain.Sell, Quantity: 100, Price: 74_500, Commission: 1_117, Tax: 17_135, Profit: 430_698, ProfitRate: 6.15},
	}
	values := []domain.DailyValue{{Date: day(0), Value: 10_000_000}, {Date: day(1), Value: 9_998_950}}

	run := sampleRun("split_buy", time.Time{})
	id, err := repo.SaveRun(ctx, run, trades, values)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, id, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	got, err := repo.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "split_buy", got.Strategy)
	assert.Equal(t, []string{"005930.KS", "000660.KS"}, got.Symbols)
	assert.Equal(t, day(0), got.StartDate)
	assert.Equal(t, day(9), got.EndDate)
	assert.Equal(t, 10_450_000.0, got.FinalValue)
	assert.Equal(t, 5.0, got.Params["split_count"], "params round trip through JSON numbers")
	assert.True(t, math.IsInf(got.Metrics.ProfitFactor, 1), "infinite profit factor survives storage")
	assert.Equal(t, run.Metrics.TotalReturn, got.Metrics.TotalReturn)
	assert.Equal(t, run.Metrics.MaxConsecutiveWins, got.Metrics.MaxConsecutiveWins)

	gotTrades, err := repo.TradesForRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, trades, gotTrades)

	gotValues, err := repo.DailyValuesForRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, values, gotValues)
}

func TestRepository_FiniteProfitFactor(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	run := sampleRun("ma_cross", time.Now())
	run.Metrics.ProfitFactor = 1.75
	id, err := repo.SaveRun(ctx, run, nil, nil)
	require.NoError(t, err)

	got, err := repo.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1.75, got.Metrics.ProfitFactor)

	trades, err := repo.TradesForRun(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestRepository_RejectsUnstorableProfitFactor(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for _, pf := range []float64{math.NaN(), math.Inf(-1)} {
		run := sampleRun("split_buy", time.Now())
		run.Metrics.ProfitFactor = pf
		_, err := repo.SaveRun(ctx, run, nil, nil)
		assert.ErrorIs(t, err, ports.ErrInvalidRequest, "profit factor %v", pf)
	}

	runs, err := repo.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs, "nothing is written for a rejected run")
}

func TestRepository_ListRuns(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"split_buy", "ma_strategy", "ma_cross"} {
		_, err := repo.SaveRun(ctx, sampleRun(name, base.Add(time.Duration(i)*time.Hour)), nil, nil)
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 0, []string{"ma_cross", "ma_strategy", "split_buy"}},
		{"limited", 2, []string{"ma_cross", "ma_strategy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := repo.ListRuns(ctx, tt.limit)
			require.NoError(t, err)
			var names []string
			for _, r := range runs {
				names = append(names, r.Strategy)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestRepository_Errors(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := repo.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, err = repo.SaveRun(ctx, nil, nil, nil)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	run := sampleRun("split_buy", time.Now())
	run.ID = "fixed-id"
	_, err = repo.SaveRun(ctx, run, nil, nil)
	require.NoError(t, err)
	_, err = repo.SaveRun(ctx, run, nil, nil)
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry)

	_, err = NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err, "logger is required")
}

func TestRepository_DeleteRunCascades(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	id, err := repo.SaveRun(ctx, sampleRun("split_buy", time.Now()),
		[]domain.TradeRecord{{Date: day(1), Symbol: "A", Side: domain.Buy, Quantity: 1, Price: 1}},
		[]domain.DailyValue{{Date: day(1), Value: 1}})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteRun(ctx, id))
	assert.ErrorIs(t, repo.DeleteRun(ctx, id), ports.ErrNotFound)

	trades, err := repo.TradesForRun(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, trades)
	values, err := repo.DailyValuesForRun(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, values)
}
