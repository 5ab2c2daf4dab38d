package backtesting

import (
	"fmt"
	"time"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/portfolio"
	"stockBacktester/internal/ports"
	"stockBacktester/internal/strategy/analytics"
)

// Report is the full outcome of a completed run.
type Report struct {
	Strategy    string
	StartDate   time.Time // First trading day
	EndDate     time.Time // Last trading day
	TradingDays int
	Metrics     analytics.Metrics
	Summary     portfolio.Summary
	Trades      []domain.TradeRecord
	DailyValues []domain.DailyValue
	Equity      analytics.EquityAnalysis // Drawdown episodes and monthly returns
}

// FinalValue returns the last daily valuation, or the initial cash when there is none.
func (r *Report) FinalValue() float64 {
	if len(r.DailyValues) == 0 {
		return r.Summary.InitialCash
	}
	return r.DailyValues[len(r.DailyValues)-1].Value
}

// Report assembles the report of the most recent run.
// It returns ports.ErrNotCompleted unless the run completed.
func (e *Engine) Report() (*Report, error) {
	if e.state != StateCompleted {
		return nil, fmt.Errorf("engine is %s: %w", e.state, ports.ErrNotCompleted)
	}
	return &Report{
		Strategy:    e.strategy,
		StartDate:   e.days[0],
		EndDate:     e.days[len(e.days)-1],
		TradingDays: len(e.days),
		Metrics:     e.metrics,
		Summary:     e.ledger.Summary(),
		Trades:      e.ledger.Trades(),
		DailyValues: e.DailyValues(),
		Equity:      analytics.AnalyzeEquity(e.values, e.cfg.InitialCash),
	}, nil
}
