// Package backtesting replays daily price history against a strategy.
package backtesting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/portfolio"
	"stockBacktester/internal/ports"
	"stockBacktester/internal/strategy/analytics"
)

// State is the lifecycle state of an Engine.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultLookback is the number of trailing bars a strategy sees each day.
const DefaultLookback = 30

// Config holds the cost model and account settings of a run.
type Config struct {
	InitialCash    float64
	CommissionRate float64 // Applied to buys and sells
	TaxRate        float64 // Applied to sells only
	SlippageRate   float64 // Raises buy prices and lowers sell prices
	Lookback       int     // Trailing bars visible to the strategy; <= 0 shows the full history
}

// DefaultConfig returns the standard cost model.
func DefaultConfig() Config {
	return Config{
		InitialCash:    10_000_000,
		CommissionRate: 0.00015,
		TaxRate:        0.0023,
		SlippageRate:   0.001,
		Lookback:       DefaultLookback,
	}
}

// Validate checks that the configuration describes a usable account.
func (c Config) Validate() error {
	switch {
	case c.InitialCash < 0 || math.IsNaN(c.InitialCash) || math.IsInf(c.InitialCash, 0):
		return fmt.Errorf("initial cash %v: %w", c.InitialCash, ports.ErrConfigurationError)
	case c.CommissionRate < 0 || c.TaxRate < 0 || c.SlippageRate < 0:
		return fmt.Errorf("rates must not be negative: %w", ports.ErrConfigurationError)
	case c.SlippageRate >= 1:
		return fmt.Errorf("slippage rate %v must be below 1: %w", c.SlippageRate, ports.ErrConfigurationError)
	}
	return nil
}

// Engine drives a day-by-day simulation. It is single-threaded; run
// independent Engines to simulate in parallel.
type Engine struct {
	cfg    Config
	logger ports.Logger

	state    State
	strategy string
	ledger   *portfolio.Ledger
	values   []domain.DailyValue
	days     []time.Time
	metrics  analytics.Metrics
}

// NewEngine creates an idle engine.
func NewEngine(cfg Config, logger ports.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logger, state: StateIdle}
}

// indexedSeries is a validated series with a day lookup.
type indexedSeries struct {
	domain.Series
	byDay map[int64]int
}

func dayKey(t time.Time) int64 {
	return domain.Day(t).Unix() / 86400
}

// Run simulates strategy over series for every trading day in [start, end].
//
// Series are processed in slice order each day; because all series share one
// cash balance, earlier series win when cash only covers one of several buys.
// A window without trading days leaves the engine Failed and returns zero
// Metrics with a nil error. Structurally invalid input returns an error
// wrapping ports.ErrMalformedSeries.
func (e *Engine) Run(ctx context.Context, strategy ports.Strategy, series []domain.Series, start, end time.Time) (analytics.Metrics, error) {
	e.reset()
	e.state = StateRunning
	e.strategy = strategy.Name()

	if err := e.cfg.Validate(); err != nil {
		e.state = StateFailed
		return analytics.Metrics{}, err
	}

	indexed, err := indexSeries(series)
	if err != nil {
		e.state = StateFailed
		e.logger.Error(ctx, err, "Rejected malformed input series")
		return analytics.Metrics{}, err
	}

	e.days = tradingDays(indexed, domain.Day(start), domain.Day(end))
	if len(e.days) == 0 {
		e.state = StateFailed
		e.logger.Warn(ctx, "No trading days in backtest window", map[string]interface{}{
			"start": start.Format(domain.DateLayout),
			"end":   end.Format(domain.DateLayout),
		})
		return analytics.Metrics{}, nil
	}

	e.logger.Info(ctx, "Backtest started", map[string]interface{}{
		"strategy":    e.strategy,
		"from":        e.days[0].Format(domain.DateLayout),
		"to":          e.days[len(e.days)-1].Format(domain.DateLayout),
		"tradingDays": len(e.days),
		"instruments": len(indexed),
	})

	e.ledger = portfolio.NewLedger(e.cfg.InitialCash)
	e.values = make([]domain.DailyValue, 0, len(e.days))
	lookback := e.lookbackFor(strategy)

	for _, day := range e.days {
		key := dayKey(day)
		for i := range indexed {
			e.simulate(ctx, strategy, &indexed[i], key, day, lookback)
		}
		e.values = append(e.values, domain.DailyValue{Date: day, Value: e.valuation(indexed, key)})
	}

	e.metrics = analytics.Compute(e.ledger.Trades(), e.values, e.cfg.InitialCash, len(e.days))
	e.state = StateCompleted

	e.logger.Info(ctx, "Backtest completed", map[string]interface{}{
		"strategy":    e.strategy,
		"totalReturn": e.metrics.TotalReturn,
		"trades":      e.ledger.TradeCount(),
	})
	return e.metrics, nil
}

func (e *Engine) reset() {
	e.state = StateIdle
	e.strategy = ""
	e.ledger = nil
	e.values = nil
	e.days = nil
	e.metrics = analytics.Metrics{}
}

// simulate asks the strategy about one instrument on one day and routes the signal.
func (e *Engine) simulate(ctx context.Context, strategy ports.Strategy, s *indexedSeries, key int64, day time.Time, lookback int) {
	idx, ok := s.byDay[key]
	if !ok {
		return // the instrument did not trade today
	}
	today := s.Bars[idx]

	lo := 0
	if lookback > 0 && idx+1 > lookback {
		lo = idx + 1 - lookback
	}
	view := make([]domain.Bar, idx+1-lo)
	copy(view, s.Bars[lo:idx+1])

	pos := e.ledger.Position(s.Symbol)
	info := domain.PositionInfo{
		Symbol:      s.Symbol,
		Quantity:    pos.Quantity,
		AvgCost:     pos.AvgCost,
		BuyCount:    pos.BuyCount,
		MaxBuyCount: strategy.MaxBuyCount(),
	}

	signal := strategy.Decide(ctx, view, info, e.ledger.Cash())

	switch signal.Type {
	case domain.SignalBuy:
		e.buy(ctx, s.Symbol, signal, today.Close, day)
	case domain.SignalSell:
		e.sell(ctx, s.Symbol, signal, today.Close, day)
	}
}

// lookbackFor returns the view length for strategy. A strategy that needs more
// history than the configured lookback gets it; a non-positive lookback stays unbounded.
func (e *Engine) lookbackFor(strategy ports.Strategy) int {
	lookback := e.cfg.Lookback
	if lookback <= 0 {
		return 0
	}
	if req, ok := strategy.(ports.DataRequirement); ok && req.RequiredDataPoints() > lookback {
		lookback = req.RequiredDataPoints()
	}
	return lookback
}

func (e *Engine) buy(ctx context.Context, symbol string, signal domain.Signal, closePrice float64, day time.Time) {
	price := closePrice * (1 + e.cfg.SlippageRate)
	commission := price * float64(signal.Quantity) * e.cfg.CommissionRate

	fields := map[string]interface{}{
		"date":     day.Format(domain.DateLayout),
		"symbol":   symbol,
		"quantity": signal.Quantity,
		"price":    price,
		"reason":   signal.Reason,
	}
	if !e.ledger.Buy(symbol, signal.Quantity, price, commission, day, signal.Reason) {
		fields["cash"] = e.ledger.Cash()
		e.logger.Debug(ctx, "Buy rejected", fields)
		return
	}
	e.logger.Debug(ctx, "Buy filled", fields)
}

func (e *Engine) sell(ctx context.Context, symbol string, signal domain.Signal, closePrice float64, day time.Time) {
	price := closePrice * (1 - e.cfg.SlippageRate)
	notional := price * float64(signal.Quantity)
	commission := notional * e.cfg.CommissionRate
	tax := notional * e.cfg.TaxRate

	fields := map[string]interface{}{
		"date":     day.Format(domain.DateLayout),
		"symbol":   symbol,
		"quantity": signal.Quantity,
		"price":    price,
		"reason":   signal.Reason,
	}
	if !e.ledger.Sell(symbol, signal.Quantity, price, commission, tax, day, signal.Reason) {
		fields["held"] = e.ledger.Position(symbol).Quantity
		e.logger.Debug(ctx, "Sell rejected", fields)
		return
	}
	e.logger.Debug(ctx, "Sell filled", fields)
}

// valuation marks open positions at today's close, falling back to avg cost
// for instruments without a bar today.
func (e *Engine) valuation(indexed []indexedSeries, key int64) float64 {
	closes := make(map[string]float64, len(indexed))
	for _, s := range indexed {
		if idx, ok := s.byDay[key]; ok {
			closes[s.Symbol] = s.Bars[idx].Close
		}
	}

	total := e.ledger.Cash()
	for _, symbol := range e.ledger.HoldingSymbols() {
		pos := e.ledger.Position(symbol)
		price, ok := closes[symbol]
		if !ok {
			price = pos.AvgCost
		}
		total += pos.MarketValue(price)
	}
	return total
}

// indexSeries validates the input and builds the per-day lookup of every series.
func indexSeries(series []domain.Series) ([]indexedSeries, error) {
	seen := make(map[string]struct{}, len(series))
	out := make([]indexedSeries, 0, len(series))

	for i, s := range series {
		if s.Symbol == "" {
			return nil, fmt.Errorf("series %d has no symbol: %w", i, ports.ErrMalformedSeries)
		}
		if _, dup := seen[s.Symbol]; dup {
			return nil, fmt.Errorf("duplicate series for %s: %w", s.Symbol, ports.ErrMalformedSeries)
		}
		seen[s.Symbol] = struct{}{}

		byDay := make(map[int64]int, len(s.Bars))
		prev := int64(math.MinInt64)
		for j, b := range s.Bars {
			if b.Date.IsZero() {
				return nil, fmt.Errorf("%s bar %d has no date: %w", s.Symbol, j, ports.ErrMalformedSeries)
			}
			if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
				return nil, fmt.Errorf("%s bar %s has no usable close: %w", s.Symbol, b.Date.Format(domain.DateLayout), ports.ErrMalformedSeries)
			}
			k := dayKey(b.Date)
			if k <= prev {
				return nil, fmt.Errorf("%s bars are not strictly ascending at %s: %w", s.Symbol, b.Date.Format(domain.DateLayout), ports.ErrMalformedSeries)
			}
			prev = k
			byDay[k] = j
		}
		out = append(out, indexedSeries{Series: s, byDay: byDay})
	}
	return out, nil
}

// tradingDays returns the sorted union of bar dates within [start, end].
func tradingDays(series []indexedSeries, start, end time.Time) []time.Time {
	set := make(map[int64]time.Time)
	for _, s := range series {
		for _, b := range s.Bars {
			d := domain.Day(b.Date)
			if d.Before(start) || d.After(end) {
				continue
			}
			set[dayKey(d)] = d
		}
	}

	days := make([]time.Time, 0, len(set))
	for _, d := range set {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// State returns the lifecycle state of the most recent run.
func (e *Engine) State() State { return e.state }

// Config returns the configuration the engine runs with.
func (e *Engine) Config() Config { return e.cfg }

// Ledger returns the ledger of the most recent run, nil before a run starts trading.
func (e *Engine) Ledger() *portfolio.Ledger { return e.ledger }

// Metrics returns the metrics of the most recent completed run.
func (e *Engine) Metrics() analytics.Metrics { return e.metrics }

// DailyValues returns a copy of the valuation series of the most recent run.
func (e *Engine) DailyValues() []domain.DailyValue {
	out := make([]domain.DailyValue, len(e.values))
	copy(out, e.values)
	return out
}

// TradingDays returns the trading days of the most recent run.
func (e *Engine) TradingDays() []time.Time {
	out := make([]time.Time, len(e.days))
	copy(out, e.days)
	return out
}
