package strategies

import (
	"context"
	"fmt"
	"math"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
	"stockBacktester/internal/strategy/indicators"
)

// DefaultMaxBuyCount is reported by strategies whose parameters declare no split count.
const DefaultMaxBuyCount = 5

// BaseStrategy provides common functionality for strategies
type BaseStrategy struct {
	name        string
	maxBuyCount int
	logger      ports.Logger
}

// NewBaseStrategy creates a new base strategy instance.
// params may override the reported max buy count through "split_count".
func NewBaseStrategy(name string, params Params, logger ports.Logger) (*BaseStrategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy %s", name)
	}
	maxBuy, err := params.Int("split_count", DefaultMaxBuyCount)
	if err != nil {
		return nil, err
	}
	return &BaseStrategy{name: name, maxBuyCount: maxBuy, logger: logger}, nil
}

// Name returns the registry name of the strategy.
func (b *BaseStrategy) Name() string { return b.name }

// MaxBuyCount returns the number of entries a position may accumulate.
func (b *BaseStrategy) MaxBuyCount() int { return b.maxBuyCount }

// emit logs actionable signals and returns sig unchanged.
func (b *BaseStrategy) emit(ctx context.Context, sig domain.Signal) domain.Signal {
	if sig.Type != domain.SignalHold {
		b.logger.Debug(ctx, "Signal generated", map[string]interface{}{
			"strategy": b.name,
			"symbol":   sig.Symbol,
			"type":     string(sig.Type),
			"quantity": sig.Quantity,
			"price":    sig.Price,
			"reason":   sig.Reason,
		})
	}
	return sig
}

// affordableQuantity returns how many whole units of price fit into min(budget, cash).
func affordableQuantity(budget, cash, price float64) int64 {
	if price <= 0 {
		return 0
	}
	return int64(math.Floor(math.Min(budget, cash) / price))
}

// profitRate is the percent distance of price from avgCost, 0 without a cost basis.
func profitRate(price, avgCost float64) float64 {
	if avgCost <= 0 {
		return 0
	}
	return (price - avgCost) / avgCost * 100
}

// trendFilter compares the latest close with a simple moving average.
type trendFilter struct {
	period int
	sma    *indicators.MovingAverage
}

func newTrendFilter(period int) trendFilter {
	return trendFilter{period: period, sma: indicators.NewSMA(period)}
}

// above reports whether the last close is strictly above the average.
// ok is false when the view is shorter than the period.
func (f trendFilter) above(ctx context.Context, view []domain.Bar) (above bool, ma float64, ok bool) {
	ma, err := f.sma.Calculate(ctx, view)
	if err != nil {
		return false, 0, false
	}
	return view[len(view)-1].Close > ma, ma, true
}

func positive(name string, v float64) error {
	if v <= 0 || math.IsNaN(v) {
		return fmt.Errorf("%s must be positive, got %v: %w", name, v, ports.ErrInvalidParameter)
	}
	return nil
}

func nonNegative(name string, v float64) error {
	if v < 0 || math.IsNaN(v) {
		return fmt.Errorf("%s must not be negative, got %v: %w", name, v, ports.ErrInvalidParameter)
	}
	return nil
}
