package strategies

import (
	"context"
	"fmt"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
)

// SplitBuyName is the registry name of SplitBuy.
const SplitBuyName = "split_buy"

// SplitBuyDefaults returns the default parameters of SplitBuy.
func SplitBuyDefaults() Params {
	return Params{
		"total_seed":           10_000_000.0,
		"split_count":          5,
		"buy_threshold":        2.0,
		"lookback_days":        1,
		"sell_profit_rate":     3.0,
		"stop_loss_rate":       5.0,
		"min_volume_threshold": 10_000,
		"max_loss_per_day":     500_000.0,
	}
}

// SplitBuy accumulates a position in equal slices whenever the close drops
// more than BuyThreshold percent against the close LookbackDays earlier, and
// exits the whole position at a profit target or stop loss.
type SplitBuy struct {
	*BaseStrategy

	TotalSeed      float64
	SplitCount     int
	BuyThreshold   float64 // %
	LookbackDays   int
	SellProfitRate float64 // %
	StopLossRate   float64 // %, 0 disables the stop
	MinVolume      int64
	MaxLossPerDay  float64 // Validated but not enforced
}

// NewSplitBuy builds a SplitBuy strategy from params.
func NewSplitBuy(params Params, logger ports.Logger) (ports.Strategy, error) {
	p := SplitBuyDefaults().Merge(params)
	base, err := NewBaseStrategy(SplitBuyName, p, logger)
	if err != nil {
		return nil, err
	}
	s := &SplitBuy{BaseStrategy: base}

	var minVolume int
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	s.TotalSeed, err = p.Float("total_seed", 0)
	collect(err)
	s.SplitCount, err = p.Int("split_count", 0)
	collect(err)
	s.BuyThreshold, err = p.Float("buy_threshold", 0)
	collect(err)
	s.LookbackDays, err = p.Int("lookback_days", 0)
	collect(err)
	s.SellProfitRate, err = p.Float("sell_profit_rate", 0)
	collect(err)
	s.StopLossRate, err = p.Float("stop_loss_rate", 0)
	collect(err)
	minVolume, err = p.Int("min_volume_threshold", 0)
	collect(err)
	s.MaxLossPerDay, err = p.Float("max_loss_per_day", 0)
	collect(err)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	s.MinVolume = int64(minVolume)

	for _, err := range []error{
		positive("total_seed", s.TotalSeed),
		positive("split_count", float64(s.SplitCount)),
		positive("lookback_days", float64(s.LookbackDays)),
		nonNegative("stop_loss_rate", s.StopLossRate),
		nonNegative("min_volume_threshold", float64(s.MinVolume)),
	} {
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RequiredDataPoints returns the bars needed to compare against LookbackDays ago.
func (s *SplitBuy) RequiredDataPoints() int {
	return s.LookbackDays + 1
}

func (s *SplitBuy) sliceSize() float64 {
	return s.TotalSeed / float64(s.SplitCount)
}

// Decide checks the exit rules first, then the entry rules.
func (s *SplitBuy) Decide(ctx context.Context, view []domain.Bar, pos domain.PositionInfo, cash float64) domain.Signal {
	if len(view) < s.LookbackDays+1 {
		return domain.Hold(pos.Symbol, "insufficient data")
	}
	price := view[len(view)-1].Close

	if pos.Quantity > 0 {
		if ok, reason := s.shouldSell(price, pos); ok {
			return s.emit(ctx, domain.Signal{Type: domain.SignalSell, Symbol: pos.Symbol, Quantity: pos.Quantity, Price: price, Reason: reason})
		}
	}

	ok, reason := s.shouldBuy(view, pos, cash)
	if !ok {
		return domain.Hold(pos.Symbol, reason)
	}
	qty := affordableQuantity(s.sliceSize(), cash, price)
	if qty <= 0 {
		return domain.Hold(pos.Symbol, "slice too small for one unit")
	}
	return s.emit(ctx, domain.Signal{Type: domain.SignalBuy, Symbol: pos.Symbol, Quantity: qty, Price: price, Reason: reason})
}

func (s *SplitBuy) shouldSell(price float64, pos domain.PositionInfo) (bool, string) {
	if pos.Quantity <= 0 || pos.AvgCost <= 0 {
		return false, "no position"
	}
	rate := profitRate(price, pos.AvgCost)
	if rate >= s.SellProfitRate {
		return true, fmt.Sprintf("profit target reached (%.2f%% >= %.2f%%)", rate, s.SellProfitRate)
	}
	if s.StopLossRate > 0 && rate <= -s.StopLossRate {
		return true, fmt.Sprintf("stop loss (%.2f%% <= -%.2f%%)", rate, s.StopLossRate)
	}
	return false, fmt.Sprintf("holding at %.2f%%", rate)
}

func (s *SplitBuy) shouldBuy(view []domain.Bar, pos domain.PositionInfo, cash float64) (bool, string) {
	today := view[len(view)-1]
	reference := view[len(view)-1-s.LookbackDays].Close

	if pos.BuyCount >= s.SplitCount {
		return false, fmt.Sprintf("max buy count (%d) reached", s.SplitCount)
	}
	if cash < s.sliceSize()*0.5 {
		return false, "insufficient cash"
	}
	if today.Volume < s.MinVolume {
		return false, fmt.Sprintf("volume too low (%d < %d)", today.Volume, s.MinVolume)
	}
	if reference <= 0 {
		return false, "invalid reference price"
	}

	// A drop exactly equal to the threshold does not qualify.
	drop := (reference - today.Close) / reference * 100
	if drop <= s.BuyThreshold {
		return false, fmt.Sprintf("drop too small (%.2f%% <= %.2f%%)", drop, s.BuyThreshold)
	}
	return true, fmt.Sprintf("down %.2f%% vs %d day(s) ago", drop, s.LookbackDays)
}
