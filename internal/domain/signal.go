package domain

// SignalType is the decision a strategy makes for one instrument on one day.
type SignalType string

const (
	SignalBuy  SignalType = "buy"
	SignalSell SignalType = "sell"
	SignalHold SignalType = "hold"
)

// Signal is produced by a strategy and routed by the engine. It is never persisted.
type Signal struct {
	Type     SignalType
	Symbol   string
	Quantity int64   // Required for buy and sell
	Price    float64 // Observed close, informational
	Reason   string
}

// Hold returns a hold signal for symbol with the given reason.
func Hold(symbol, reason string) Signal {
	return Signal{Type: SignalHold, Symbol: symbol, Reason: reason}
}
