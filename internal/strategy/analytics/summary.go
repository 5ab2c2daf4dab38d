package analytics

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Summary renders the metrics as a fixed-width text report.
func (m Metrics) Summary() string {
	rule := strings.Repeat("=", 50)
	thin := strings.Repeat("-", 50)

	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line(rule)
	line("Backtest Performance Report")
	line(rule)
	line("Total return:        %10.2f%%", m.TotalReturn)
	line("Annual return:       %10.2f%%", m.AnnualReturn)
	line("Sharpe ratio:        %10.2f", m.SharpeRatio)
	line("Max drawdown:        %10.2f%%", m.MaxDrawdown)
	line(thin)
	line("Sell trades:         %10d", m.TotalTrades)
	line("Win rate:            %10.2f%%", m.WinRate)
	line("Winning trades:      %10d", m.WinningTrades)
	line("Losing trades:       %10d", m.LosingTrades)
	line("Avg profit:          %10s", FormatMoney(m.AvgProfit))
	line("Avg loss:            %10s", FormatMoney(m.AvgLoss))
	line("Profit factor:       %10s", FormatRatio(m.ProfitFactor))
	line("Avg holding days:    %10.1f", m.AvgHoldingDays)
	line(thin)
	line("Max consecutive wins:   %7d", m.MaxConsecutiveWins)
	line("Max consecutive losses: %7d", m.MaxConsecutiveLosses)
	b.WriteString(rule)
	return b.String()
}

// FormatMoney rounds v to a whole currency unit and groups thousands with commas.
func FormatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprint(v)
	}
	s := decimal.NewFromFloat(v).Round(0).String()

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// FormatRatio renders a ratio with two decimals, spelling out infinity.
func FormatRatio(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsNaN(v) || math.IsInf(v, -1):
		return fmt.Sprint(v)
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}
