package domain

import "time"

// TradeRecord is an immutable fill recorded by the ledger.
type TradeRecord struct {
	Date       time.Time
	Symbol     string
	Side       Side
	Quantity   int64
	Price      float64 // Execution price after slippage
	Commission float64
	Tax        float64 // Sell side only
	Profit     float64 // Realized profit, sells only
	ProfitRate float64 // Realized profit in percent of avg cost, sells only
	Reason     string  // Strategy rationale, diagnostic only
}

// IsSell reports whether the record realizes profit.
func (t TradeRecord) IsSell() bool {
	return t.Side == Sell
}
