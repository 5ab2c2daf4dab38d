// Package analytics derives return, risk and trade statistics from a finished run.
// Everything here is a pure function of its arguments.
package analytics

import (
	"math"

	"stockBacktester/internal/domain"
)

const (
	// TradingDaysPerYear converts trading-day counts into years.
	TradingDaysPerYear = 252
	// RiskFreeRate is the annual risk-free rate used by the Sharpe ratio.
	RiskFreeRate = 0.03

	// stdEpsilon treats accumulated rounding noise in a constant return series as zero deviation.
	stdEpsilon = 1e-12
)

// Metrics holds the performance statistics of one backtest run.
// Percent figures are expressed in percent (5.0 means 5%).
type Metrics struct {
	TotalReturn  float64 // %
	AnnualReturn float64 // %
	SharpeRatio  float64
	MaxDrawdown  float64 // %

	WinRate      float64 // % of sell trades with positive profit
	AvgProfit    float64 // mean profit of winning sells
	AvgLoss      float64 // mean profit of non-positive sells (<= 0)
	ProfitFactor float64 // +Inf when there are winners and nothing was lost

	TotalTrades   int // sell trades
	WinningTrades int
	LosingTrades  int

	AvgHoldingDays       float64
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
}

// Compute derives Metrics from the trade history and the daily valuation series.
// Neither input is modified. An empty valuation series yields zero Metrics.
func Compute(trades []domain.TradeRecord, values []domain.DailyValue, initialCash float64, tradingDays int) Metrics {
	var m Metrics
	if len(values) == 0 {
		return m
	}

	final := values[len(values)-1].Value
	if initialCash > 0 {
		m.TotalReturn = (final - initialCash) / initialCash * 100
		if tradingDays > 0 {
			years := float64(tradingDays) / TradingDaysPerYear
			m.AnnualReturn = (math.Pow(final/initialCash, 1/years) - 1) * 100
		}
	}

	m.SharpeRatio = sharpeRatio(dailyReturns(values))
	m.MaxDrawdown = maxDrawdown(values)

	applyTradeStats(&m, trades)
	m.AvgHoldingDays = avgHoldingDays(trades)
	return m
}

// dailyReturns returns simple returns between consecutive valuations, skipping
// pairs whose earlier value is not positive.
func dailyReturns(values []domain.DailyValue) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1].Value
		if prev > 0 {
			out = append(out, (values[i].Value-prev)/prev)
		}
	}
	return out
}

// sharpeRatio annualizes mean excess return over its population standard deviation.
func sharpeRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	rf := RiskFreeRate / TradingDaysPerYear
	n := float64(len(returns))

	var sum float64
	for _, r := range returns {
		sum += r - rf
	}
	mean := sum / n

	var sq float64
	for _, r := range returns {
		d := r - rf - mean
		sq += d * d
	}
	std := math.Sqrt(sq / n)
	if std < stdEpsilon {
		return 0
	}
	return mean / std * math.Sqrt(TradingDaysPerYear)
}

// maxDrawdown returns the largest decline from a running peak, in percent.
func maxDrawdown(values []domain.DailyValue) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0].Value
	var maxDD float64
	for _, v := range values {
		if v.Value > peak {
			peak = v.Value
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v.Value) / peak * 100; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// applyTradeStats fills the outcome statistics from sell records in chronological order.
func applyTradeStats(m *Metrics, trades []domain.TradeRecord) {
	var grossWin, grossLoss float64
	var consecutiveWins, consecutiveLosses int

	for _, t := range trades {
		if !t.IsSell() {
			continue
		}
		m.TotalTrades++
		if t.Profit > 0 {
			m.WinningTrades++
			grossWin += t.Profit
			consecutiveWins++
			consecutiveLosses = 0
			if consecutiveWins > m.MaxConsecutiveWins {
				m.MaxConsecutiveWins = consecutiveWins
			}
		} else {
			m.LosingTrades++
			grossLoss += t.Profit
			consecutiveLosses++
			consecutiveWins = 0
			if consecutiveLosses > m.MaxConsecutiveLosses {
				m.MaxConsecutiveLosses = consecutiveLosses
			}
		}
	}

	if m.TotalTrades == 0 {
		return
	}
	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	if m.WinningTrades > 0 {
		m.AvgProfit = grossWin / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = grossLoss / float64(m.LosingTrades)
	}

	switch loss := math.Abs(grossLoss); {
	case loss > 0:
		m.ProfitFactor = grossWin / loss
	case grossWin > 0:
		m.ProfitFactor = math.Inf(1)
	}
}

type lot struct {
	day int64 // days since epoch
	qty int64
}

// avgHoldingDays matches sells against earlier buys of the same symbol first-in
// first-out and averages the quantity-weighted holding period over sell records.
func avgHoldingDays(trades []domain.TradeRecord) float64 {
	open := make(map[string][]lot)
	var total float64
	var sells int

	for _, t := range trades {
		day := domain.Day(t.Date).Unix() / 86400
		if !t.IsSell() {
			open[t.Symbol] = append(open[t.Symbol], lot{day: day, qty: t.Quantity})
			continue
		}

		lots := open[t.Symbol]
		remaining := t.Quantity
		var weighted float64
		var matched int64
		for remaining > 0 && len(lots) > 0 {
			take := lots[0].qty
			if take > remaining {
				take = remaining
			}
			weighted += float64((day - lots[0].day) * take)
			matched += take
			remaining -= take
			if take == lots[0].qty {
				lots = lots[1:]
			} else {
				lots[0].qty -= take
			}
		}
		open[t.Symbol] = lots

		if matched > 0 {
			total += weighted / float64(matched)
			sells++
		}
	}

	if sells == 0 {
		return 0
	}
	return total / float64(sells)
}
