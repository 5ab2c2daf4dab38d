package ports

import (
	"context"

	"stockBacktester/internal/domain"
)

// Strategy defines the contract the backtest engine drives once per instrument per trading day.
type Strategy interface {
	// Name returns the registry name of the strategy.
	Name() string

	// MaxBuyCount returns the maximum number of entries the strategy accumulates per position.
	MaxBuyCount() int

	// Decide returns the signal for the instrument described by pos.
	// view holds bars up to and including the current day, oldest first; it never
	// contains future bars. The returned quantity is executed exactly as given.
	Decide(ctx context.Context, view []domain.Bar, pos domain.PositionInfo, cash float64) domain.Signal
}

// DataRequirement is implemented by strategies that need a longer history than
// the engine's default view. The engine widens the view to the larger of the two.
type DataRequirement interface {
	RequiredDataPoints() int
}
