package domain

import "time"

// Side represents the side of a fill (buy or sell).
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// DateLayout is the layout used whenever a trading date is rendered as text.
const DateLayout = "2006-01-02"

// Day truncates t to a UTC calendar day. All date comparisons in the
// simulation are made on values normalized through Day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a UTC calendar day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}
