package analytics

import (
	"math"
	"sort"
	"time"

	"stockBacktester/internal/domain"
)

// Drawdown represents one decline from a peak until the series recovers (or ends).
type Drawdown struct {
	StartTime  time.Time // Date of the peak
	EndTime    time.Time // Date of recovery, or the last date if never recovered
	StartValue float64
	Trough     float64
	Depth      float64 // % below the peak at the trough
	Recovered  bool
}

// Duration returns the calendar length of the drawdown.
func (d Drawdown) Duration() time.Duration {
	return d.EndTime.Sub(d.StartTime)
}

// MonthlyReturn represents the valuation change over one calendar month.
type MonthlyReturn struct {
	Month  time.Time
	Return float64 // %
}

// EquityAnalysis describes the shape of the valuation curve.
type EquityAnalysis struct {
	Drawdowns      []Drawdown
	MonthlyReturns []MonthlyReturn
}

// AnalyzeEquity splits the valuation series into drawdown episodes and monthly returns.
func AnalyzeEquity(values []domain.DailyValue, initialCash float64) EquityAnalysis {
	var out EquityAnalysis
	if len(values) == 0 {
		return out
	}
	out.Drawdowns = drawdowns(values)
	out.MonthlyReturns = monthlyReturns(values, initialCash)
	return out
}

func drawdowns(values []domain.DailyValue) []Drawdown {
	var result []Drawdown
	peak := values[0]
	var current *Drawdown

	for _, v := range values {
		if v.Value >= peak.Value {
			if current != nil {
				current.EndTime = v.Date
				current.Recovered = true
				result = append(result, *current)
				current = nil
			}
			peak = v
			continue
		}
		if peak.Value <= 0 {
			continue
		}
		depth := (peak.Value - v.Value) / peak.Value * 100
		if current == nil {
			current = &Drawdown{StartTime: peak.Date, StartValue: peak.Value, Trough: v.Value, Depth: depth}
		} else if v.Value < current.Trough {
			current.Trough = v.Value
			current.Depth = math.Max(current.Depth, depth)
		}
		current.EndTime = v.Date
	}

	if current != nil {
		result = append(result, *current)
	}
	return result
}

// monthlyReturns compares each month's last valuation with the previous month's
// last valuation; the first month is compared with initialCash.
func monthlyReturns(values []domain.DailyValue, initialCash float64) []MonthlyReturn {
	lastByMonth := make(map[time.Time]float64)
	for _, v := range values {
		y, m, _ := v.Date.Date()
		lastByMonth[time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)] = v.Value
	}

	months := make([]time.Time, 0, len(lastByMonth))
	for k := range lastByMonth {
		months = append(months, k)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	out := make([]MonthlyReturn, 0, len(months))
	prev := initialCash
	for _, month := range months {
		cur := lastByMonth[month]
		var ret float64
		if prev > 0 {
			ret = (cur - prev) / prev * 100
		}
		out = append(out, MonthlyReturn{Month: month, Return: ret})
		prev = cur
	}
	return out
}
