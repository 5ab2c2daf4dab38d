// Package portfolio holds the cash and position ledger of a simulation run.
// It is the only place where cash and positions change.
package portfolio

import (
	"time"

	"stockBacktester/internal/domain"
)

// Summary is a snapshot of the ledger totals.
type Summary struct {
	InitialCash     float64
	CurrentCash     float64
	TotalInvested   float64
	TotalAssets     float64
	TotalProfit     float64
	TotalProfitRate float64
	HoldingCount    int
	TradeCount      int
}

// Ledger owns cash, per-symbol positions and the append-only trade history.
// A Ledger belongs to a single run and is not safe for concurrent use.
type Ledger struct {
	initialCash float64
	cash        float64
	positions   map[string]*domain.Position
	order       []string // symbols in first-seen order, for deterministic iteration
	trades      []domain.TradeRecord

	dailyLoss     float64
	lastLossDate  time.Time
	hasLossWindow bool
}

// NewLedger creates a ledger holding initialCash and nothing else.
func NewLedger(initialCash float64) *Ledger {
	return &Ledger{
		initialCash: initialCash,
		cash:        initialCash,
		positions:   make(map[string]*domain.Position),
	}
}

// position returns the live position for symbol, creating an empty one on first access.
func (l *Ledger) position(symbol string) *domain.Position {
	p, ok := l.positions[symbol]
	if !ok {
		p = &domain.Position{Symbol: symbol}
		l.positions[symbol] = p
		l.order = append(l.order, symbol)
	}
	return p
}

// Buy debits price*qty+commission and adds qty to the position of symbol.
// It returns false and leaves the ledger untouched when qty is not positive
// or the cash balance cannot cover the fill.
func (l *Ledger) Buy(symbol string, qty int64, price, commission float64, date time.Time, reason string) bool {
	if qty <= 0 {
		return false
	}
	cost := price*float64(qty) + commission
	if cost > l.cash {
		return false
	}

	l.cash -= cost

	p := l.position(symbol)
	newQty := p.Quantity + qty
	p.AvgCost = (p.AvgCost*float64(p.Quantity) + price*float64(qty)) / float64(newQty)
	p.Quantity = newQty
	p.BuyCount++
	p.TotalInvested += price * float64(qty)

	l.trades = append(l.trades, domain.TradeRecord{
		Date:       date,
		Symbol:     symbol,
		Side:       domain.Buy,
		Quantity:   qty,
		Price:      price,
		Commission: commission,
		Reason:     reason,
	})
	return true
}

// Sell credits price*qty-commission-tax and removes qty from the position of symbol.
// It returns false and leaves the ledger untouched when qty is not positive
// or exceeds the held quantity. Fills are never partial.
func (l *Ledger) Sell(symbol string, qty int64, price, commission, tax float64, date time.Time, reason string) bool {
	if qty <= 0 {
		return false
	}
	p, ok := l.positions[symbol]
	if !ok || qty > p.Quantity {
		return false
	}

	avg := p.AvgCost
	l.cash += price*float64(qty) - commission - tax

	profit := (price-avg)*float64(qty) - commission - tax
	var profitRate float64
	if avg > 0 {
		profitRate = (price - avg) / avg * 100
	}

	p.Quantity -= qty
	if p.Quantity == 0 {
		// Cost basis is cleared, a later entry starts fresh.
		p.AvgCost = 0
		p.BuyCount = 0
		p.TotalInvested = 0
	}

	d := domain.Day(date)
	if !l.hasLossWindow || !d.Equal(l.lastLossDate) {
		l.dailyLoss = 0
		l.lastLossDate = d
		l.hasLossWindow = true
	}
	if profit < 0 {
		l.dailyLoss += -profit
	}

	l.trades = append(l.trades, domain.TradeRecord{
		Date:       date,
		Symbol:     symbol,
		Side:       domain.Sell,
		Quantity:   qty,
		Price:      price,
		Commission: commission,
		Tax:        tax,
		Profit:     profit,
		ProfitRate: profitRate,
		Reason:     reason,
	})
	return true
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 { return l.cash }

// InitialCash returns the starting cash balance.
func (l *Ledger) InitialCash() float64 { return l.initialCash }

// Position returns a copy of the position for symbol. Unknown symbols yield an empty position.
func (l *Ledger) Position(symbol string) domain.Position {
	if p, ok := l.positions[symbol]; ok {
		return *p
	}
	return domain.Position{Symbol: symbol}
}

// HoldingSymbols returns symbols with a positive quantity, in first-seen order.
func (l *Ledger) HoldingSymbols() []string {
	var out []string
	for _, s := range l.order {
		if l.positions[s].Quantity > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Trades returns a copy of the trade history in execution order.
func (l *Ledger) Trades() []domain.TradeRecord {
	out := make([]domain.TradeRecord, len(l.trades))
	copy(out, l.trades)
	return out
}

// TradeCount returns the number of recorded fills.
func (l *Ledger) TradeCount() int { return len(l.trades) }

// TotalInvested is the book value of open positions, quantity times avg cost.
func (l *Ledger) TotalInvested() float64 {
	var total float64
	for _, s := range l.order {
		p := l.positions[s]
		total += p.AvgCost * float64(p.Quantity)
	}
	return total
}

// TotalAssets is cash plus the book value of open positions.
// It is a conservative estimate used when no market price is at hand.
func (l *Ledger) TotalAssets() float64 {
	return l.cash + l.TotalInvested()
}

// TotalProfit is TotalAssets minus the initial cash.
func (l *Ledger) TotalProfit() float64 {
	return l.TotalAssets() - l.initialCash
}

// TotalProfitRate is TotalProfit in percent of the initial cash, 0 when there was no cash.
func (l *Ledger) TotalProfitRate() float64 {
	if l.initialCash == 0 {
		return 0
	}
	return l.TotalProfit() / l.initialCash * 100
}

// DailyLoss returns the realized losses booked on the date of the most recent sell.
// It is informational; no buy or sell is gated on it.
func (l *Ledger) DailyLoss() float64 { return l.dailyLoss }

// Summary returns the ledger totals.
func (l *Ledger) Summary() Summary {
	return Summary{
		InitialCash:     l.initialCash,
		CurrentCash:     l.cash,
		TotalInvested:   l.TotalInvested(),
		TotalAssets:     l.TotalAssets(),
		TotalProfit:     l.TotalProfit(),
		TotalProfitRate: l.TotalProfitRate(),
		HoldingCount:    len(l.HoldingSymbols()),
		TradeCount:      len(l.trades),
	}
}
