package indicators

import (
	"context"
	"errors"

	"stockBacktester/internal/domain"
)

// ErrInsufficientData is returned when fewer bars than the period are supplied.
var ErrInsufficientData = errors.New("not enough data for indicator")

// Indicator represents a technical indicator that can be calculated from price data
type Indicator interface {
	// Calculate computes the indicator value for the given bars, oldest first
	Calculate(ctx context.Context, bars []domain.Bar) (float64, error)

	// RequiredDataPoints returns the minimum number of bars needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of bars needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}
