package strategies

import (
	"context"
	"fmt"
	"math"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
)

// WeightedMAName is the registry name of WeightedMA.
const WeightedMAName = "weighted_ma"

// WeightedMADefaults returns the default parameters of WeightedMA.
func WeightedMADefaults() Params {
	return MACrossDefaults().Merge(Params{
		"weights": map[string]interface{}{},
	})
}

// WeightedMA applies the MACross trend rule per symbol but sizes each holding
// towards a target share of the seed. Symbols without a weight are ignored.
type WeightedMA struct {
	*MACross
	Weights map[string]float64
}

// NewWeightedMA builds a WeightedMA strategy from params.
func NewWeightedMA(params Params, logger ports.Logger) (ports.Strategy, error) {
	p := WeightedMADefaults().Merge(params)
	cross, err := newMACross(WeightedMAName, p, logger)
	if err != nil {
		return nil, err
	}
	weights, err := p.Weights("weights")
	if err != nil {
		return nil, err
	}
	for sym, w := range weights {
		if err := nonNegative("weights."+sym, w); err != nil {
			return nil, err
		}
	}
	return &WeightedMA{MACross: cross, Weights: weights}, nil
}

// Decide tops the holding up to its target value while above the average.
func (s *WeightedMA) Decide(ctx context.Context, view []domain.Bar, pos domain.PositionInfo, cash float64) domain.Signal {
	weight, ok := s.Weights[pos.Symbol]
	if !ok {
		return domain.Hold(pos.Symbol, "no target weight")
	}
	above, ma, ok := s.trend.above(ctx, view)
	if !ok {
		return domain.Hold(pos.Symbol, "insufficient data")
	}
	price := view[len(view)-1].Close

	if !above {
		if pos.Quantity > 0 {
			return s.emit(ctx, domain.Signal{
				Type: domain.SignalSell, Symbol: pos.Symbol, Quantity: pos.Quantity, Price: price,
				Reason: fmt.Sprintf("close %.2f at or below MA%d %.2f", price, s.MAPeriod, ma),
			})
		}
		return domain.Hold(pos.Symbol, "below MA")
	}

	target := s.TotalSeed * weight
	deficit := target - float64(pos.Quantity)*price
	if deficit <= price {
		return domain.Hold(pos.Symbol, "at target weight")
	}
	qty := int64(math.Floor(math.Min(deficit, cash) / price))
	if qty <= 0 {
		return domain.Hold(pos.Symbol, "insufficient cash")
	}
	return s.emit(ctx, domain.Signal{
		Type: domain.SignalBuy, Symbol: pos.Symbol, Quantity: qty, Price: price,
		Reason: fmt.Sprintf("rebalance towards %.0f%% weight", weight*100),
	})
}
