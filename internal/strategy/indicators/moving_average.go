package indicators

import (
	"context"
	"fmt"

	"stockBacktester/internal/domain"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both SMA and EMA over daily closes
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) *MovingAverage {
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// NewSMA is shorthand for a simple moving average over period closes.
func NewSMA(period int) *MovingAverage {
	return NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: period}, Type: SimpleMovingAverage})
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return string(m.config.Type)
}

// Calculate computes the moving average value based on the configured type
func (m *MovingAverage) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	if m.Config.Period <= 0 {
		return 0, fmt.Errorf("invalid %s period %d", m.config.Type, m.Config.Period)
	}
	switch m.config.Type {
	case SimpleMovingAverage:
		return m.calculateSMA(bars)
	case ExponentialMovingAverage:
		return m.calculateEMA(bars)
	default:
		return 0, fmt.Errorf("unsupported moving average type: %s", m.config.Type)
	}
}

// calculateSMA averages the last Period closes
func (m *MovingAverage) calculateSMA(bars []domain.Bar) (float64, error) {
	if len(bars) < m.Config.Period {
		return 0, fmt.Errorf("%d bars for SMA period %d: %w", len(bars), m.Config.Period, ErrInsufficientData)
	}

	total := 0.0
	for i := len(bars) - m.Config.Period; i < len(bars); i++ {
		total += bars[i].Close
	}
	return total / float64(m.Config.Period), nil
}

// calculateEMA seeds with the SMA of the first Period closes and smooths the rest
func (m *MovingAverage) calculateEMA(bars []domain.Bar) (float64, error) {
	if len(bars) < m.Config.Period {
		return 0, fmt.Errorf("%d bars for EMA period %d: %w", len(bars), m.Config.Period, ErrInsufficientData)
	}

	multiplier := 2.0 / float64(m.Config.Period+1)

	ema, err := m.calculateSMA(bars[:m.Config.Period])
	if err != nil {
		return 0, fmt.Errorf("failed to calculate initial SMA for EMA: %w", err)
	}

	for i := m.Config.Period; i < len(bars); i++ {
		ema = (bars[i].Close-ema)*multiplier + ema
	}

	return ema, nil
}
