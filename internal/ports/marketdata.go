package ports

import (
	"context"
	"time"

	"stockBacktester/internal/domain"
)

// MarketDataProvider supplies daily OHLCV history for instruments.
// Implementations return bars sorted by date ascending and an empty slice
// (not an error) when the symbol has no data in the range.
type MarketDataProvider interface {
	// GetOHLCV returns the bars of symbol with start <= date <= end.
	GetOHLCV(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// Symbols lists the instruments the provider knows about.
	Symbols(ctx context.Context) ([]string, error)
}

// BarWriter stores bars produced by a fetcher or generator.
type BarWriter interface {
	WriteBars(ctx context.Context, symbol string, bars []domain.Bar) error
}
