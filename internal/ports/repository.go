package ports

import (
	"context"
	"time"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/strategy/analytics"
)

// RunRecord describes one persisted backtest run.
type RunRecord struct {
	ID          string
	Strategy    string
	Params      map[string]interface{}
	Symbols     []string
	StartDate   time.Time
	EndDate     time.Time
	InitialCash float64
	FinalValue  float64
	CreatedAt   time.Time
	Metrics     analytics.Metrics
}

// RunRepository defines the interface for storing and retrieving backtest runs.
type RunRepository interface {
	// SaveRun stores the run with its trades and daily valuations and returns the assigned ID.
	SaveRun(ctx context.Context, run *RunRecord, trades []domain.TradeRecord, values []domain.DailyValue) (string, error)
	// GetRun retrieves a run by ID. Returns ErrNotFound if it does not exist.
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	// ListRuns retrieves the most recent runs, newest first, up to limit (0 means all).
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)
	// TradesForRun retrieves the trades of a run in execution order.
	TradesForRun(ctx context.Context, id string) ([]domain.TradeRecord, error)
	// DailyValuesForRun retrieves the valuation series of a run in date order.
	DailyValuesForRun(ctx context.Context, id string) ([]domain.DailyValue, error)
}
