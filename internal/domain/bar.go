package domain

import "time"

// Bar represents a single daily OHLCV row.
type Bar struct {
	Date   time.Time // Trading day (UTC midnight)
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Series is the ordered bar history of one instrument.
// Bars must be sorted by Date ascending with no duplicate days.
type Series struct {
	Symbol string
	Bars   []Bar
}

// Len returns the number of bars in the series.
func (s Series) Len() int {
	return len(s.Bars)
}

// DailyValue is one end-of-day mark-to-market valuation of the portfolio.
type DailyValue struct {
	Date  time.Time
	Value float64
}
