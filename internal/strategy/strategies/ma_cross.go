package strategies

import (
	"context"
	"fmt"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
)

// MACrossName is the registry name of MACross.
const MACrossName = "ma_cross"

// MACrossDefaults returns the default parameters of MACross.
func MACrossDefaults() Params {
	return Params{
		"total_seed":           10_000_000.0,
		"ma_period":            120,
		"position_size_pct":    100.0,
		"min_volume_threshold": 0,
	}
}

// MACross is a long-horizon trend follower: fully invested while the close
// stays above the moving average, flat otherwise.
type MACross struct {
	*BaseStrategy
	trend trendFilter

	TotalSeed       float64
	MAPeriod        int
	PositionSizePct float64
	MinVolume       int64 // 0 disables the volume check
}

// NewMACross builds an MACross strategy from params.
func NewMACross(params Params, logger ports.Logger) (ports.Strategy, error) {
	return newMACross(MACrossName, MACrossDefaults().Merge(params), logger)
}

func newMACross(name string, p Params, logger ports.Logger) (*MACross, error) {
	base, err := NewBaseStrategy(name, p, logger)
	if err != nil {
		return nil, err
	}
	s := &MACross{BaseStrategy: base}

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
func (s *MACross) RequiredDataPoints() int { return s.MAPeriod }

// Decide holds the position only while the close is above the average.
func (s *MACross) Decide(ctx context.Context, view []domain.Bar, pos domain.PositionInfo, cash float64) domain.Signal {
	above, ma, ok := s.trend.above(ctx, view)
	if !ok {
		return domain.Hold(pos.Symbol, "insufficient data")
	}
	today := view[len(view)-1]

	if !above {
		if pos.Quantity > 0 {
			return s.emit(ctx, domain.Signal{
				Type: domain.SignalSell, Symbol: pos.Symbol, Quantity: pos.Quantity, Price: today.Close,
				Reason: fmt.Sprintf("close %.2f at or below MA%d %.2f", today.Close, s.MAPeriod, ma),
			})
		}
		return domain.Hold(pos.Symbol, "below MA")
	}

	if pos.Quantity > 0 {
		return domain.Hold(pos.Symbol, "already holding")
	}
	if s.MinVolume > 0 && today.Volume < s.MinVolume {
		return domain.Hold(pos.Symbol, fmt.Sprintf("volume too low (%d < %d)", today.Volume, s.MinVolume))
	}
	qty := affordableQuantity(s.TotalSeed*s.PositionSizePct/100, cash, today.Close)
	if qty <= 0 {
		return domain.Hold(pos.Symbol, "insufficient cash")
	}
	return s.emit(ctx, domain.Signal{
		Type: domain.SignalBuy, Symbol: pos.Symbol, Quantity: qty, Price: today.Close,
		Reason: fmt.Sprintf("close %.2f above MA%d %.2f", today.Close, s.MAPeriod, ma),
	})
}
