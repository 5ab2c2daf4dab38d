package domain

// Position represents the holding of one instrument inside the ledger.
type Position struct {
	Symbol        string
	Quantity      int64   // Units held, never negative
	AvgCost       float64 // Weighted average execution price of the open quantity
	BuyCount      int     // Fills accumulated since the position was last flat
	TotalInvested float64 // Gross cost of all fills since the position was last flat
}

// MarketValue values the position at the given price.
func (p Position) MarketValue(price float64) float64 {
	return float64(p.Quantity) * price
}

// PositionInfo is the read-only view of a position handed to a strategy.
type PositionInfo struct {
	Symbol      string
	Quantity    int64
	AvgCost     float64
	BuyCount    int
	MaxBuyCount int
}
