// Package marketdata loads daily bar series for backtests.
package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
)

// Loader fetches series from a provider and caches them per symbol and window.
type Loader struct {
	provider ports.MarketDataProvider
	logger   ports.Logger

	mu    sync.Mutex
	cache map[string][]domain.Bar
}

// NewLoader creates a loader on top of provider.
func NewLoader(provider ports.MarketDataProvider, logger ports.Logger) *Loader {
	return &Loader{
		provider: provider,
		logger:   logger,
		cache:    make(map[string][]domain.Bar),
	}
}

func cacheKey(symbol string, start, end time.Time) string {
	return symbol + "|" + start.Format(domain.DateLayout) + "|" + end.Format(domain.DateLayout)
}

// Bars returns the bars of symbol in [start, end], from cache when possible.
// The returned slice is owned by the caller.
func (l *Loader) Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	start, end = domain.Day(start), domain.Day(end)
	key := cacheKey(symbol, start, end)

	l.mu.Lock()
	cached, ok := l.cache[key]
	l.mu.Unlock()
	if ok {
		return cloneBars(cached), nil
	}

	bars, err := l.provider.GetOHLCV(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", symbol, err)
	}

	l.mu.Lock()
	l.cache[key] = cloneBars(bars)
	l.mu.Unlock()
	return bars, nil
}

// Load returns one series per requested symbol, in request order. Symbols the
// provider has no bars for are skipped with a warning; an empty result is
// reported as ports.ErrNoData.
func (l *Loader) Load(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Series, error) {
	series := make([]domain.Series, 0, len(symbols))
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%v: %w", err, ports.ErrContextCanceled)
		}

		bars, err := l.Bars(ctx, symbol, start, end)
		if err != nil {
			return nil, err
		}
		if len(bars) == 0 {
			l.logger.Warn(ctx, "Skipping symbol without data", map[string]interface{}{
				"symbol": symbol,
				"start":  start.Format(domain.DateLayout),
				"end":    end.Format(domain.DateLayout),
			})
			continue
		}

		l.logger.Info(ctx, "Loaded bars", map[string]interface{}{
			"symbol": symbol,
			"bars":   len(bars),
		})
		series = append(series, domain.Series{Symbol: symbol, Bars: bars})
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("no bars for %v between %s and %s: %w",
			symbols, start.Format(domain.DateLayout), end.Format(domain.DateLayout), ports.ErrNoData)
	}
	return series, nil
}

// ClearCache drops every cached series.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string][]domain.Bar)
}

func cloneBars(bars []domain.Bar) []domain.Bar {
	out := make([]domain.Bar, len(bars))
	copy(out, bars)
	return out
}
