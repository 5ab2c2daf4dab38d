package strategies

import (
	"context"
	"fmt"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
)

// MAStrategyName is the registry name of MAStrategy.
const MAStrategyName = "ma_strategy"

// MAStrategyDefaults returns the default parameters of MAStrategy.
func MAStrategyDefaults() Params {
	return Params{
		"total_seed":           10_000_000.0,
		"ma_period":            20,
		"position_size_pct":    20.0,
		"min_volume_threshold": 10_000,
	}
}

// MAStrategy enters once when the close crosses above its moving average and
// exits the whole position when it falls below.
type MAStrategy struct {
	*BaseStrategy
	trend trendFilter

	TotalSeed       float64
	MAPeriod        int
	PositionSizePct float64
	MinVolume       int64
}

// NewMAStrategy builds an MAStrategy from params.
func NewMAStrategy(params Params, logger ports.Logger) (ports.Strategy, error) {
	p := MAStrategyDefaults().Merge(params)
	base, err := NewBaseStrategy(MAStrategyName, p, logger)
	if err != nil {
		return nil, err
	}
	s := &MAStrategy{BaseStrategy: base}

	if s.TotalSeed, err = p.Float("total_seed", 0); err != nil {
		return nil, err
	}
	if s.MAPeriod, err = p.Int("ma_period", 0); err != nil {
		return nil, err
	}
	if s.PositionSizePct, err = p.Float("position_size_pct", 0); err != nil {
		return nil, err
	}
	minVolume, err := p.Int("min_volume_threshold", 0)
	if err != nil {
		return nil, err
	}
	s.MinVolume = int64(minVolume)

	for _, err := range []error{
		positive("total_seed", s.TotalSeed),
		positive("ma_period", float64(s.MAPeriod)),
		positive("position_size_pct", s.PositionSizePct),
		nonNegative("min_volume_threshold", float64(s.MinVolume)),
	} {
		if err != nil {
			return nil, err
		}
	}
	s.trend = newTrendFilter(s.MAPeriod)
	return s, nil
}

// RequiredDataPoints returns the moving average period.
func (s *MAStrategy) RequiredDataPoints() int { return s.MAPeriod }

func (s *MAStrategy) positionSize() float64 {
	return s.TotalSeed * s.PositionSizePct / 100
}

// Decide sells below the average and buys above it while flat.
func (s *MAStrategy) Decide(ctx context.Context, view []domain.Bar, pos domain.PositionInfo, cash float64) domain.Signal {
	above, ma, ok := s.trend.above(ctx, view)
	if !ok {
		return domain.Hold(pos.Symbol, "insufficient data")
	}
	today := view[len(view)-1]

	if pos.Quantity > 0 && pos.AvgCost > 0 && today.Close < ma {
		return s.emit(ctx, domain.Signal{
			Type: domain.SignalSell, Symbol: pos.Symbol, Quantity: pos.Quantity, Price: today.Close,
			Reason: fmt.Sprintf("close %.2f below MA%d %.2f", today.Close, s.MAPeriod, ma),
		})
	}

	if pos.Quantity > 0 {
		return domain.Hold(pos.Symbol, "already holding")
	}
	size := s.positionSize()
	switch {
	case cash < size*0.5:
		return domain.Hold(pos.Symbol, "insufficient cash")
	case today.Volume < s.MinVolume:
		return domain.Hold(pos.Symbol, fmt.Sprintf("volume too low (%d < %d)", today.Volume, s.MinVolume))
	case !above:
		return domain.Hold(pos.Symbol, "close not above MA")
	}

	qty := affordableQuantity(size, cash, today.Close)
	if qty <= 0 {
		return domain.Hold(pos.Symbol, "position size too small for one unit")
	}
	return s.emit(ctx, domain.Signal{
		Type: domain.SignalBuy, Symbol: pos.Symbol, Quantity: qty, Price: today.Close,
		Reason: fmt.Sprintf("close %.2f above MA%d %.2f", today.Close, s.MAPeriod, ma),
	})
}
