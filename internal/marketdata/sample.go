package marketdata

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"stockBacktester/internal/domain"
)

// Sample data parameters.
const (
	SampleDrift      = 0.0002
	SampleVolatility = 0.02
	SampleBasePrice  = 150_000.0
	// Symbols containing SampleLowPriceCode start at SampleLowPrice instead.
	SampleLowPriceCode = "005930"
	SampleLowPrice     = 70_000.0
)

// SampleProvider generates a deterministic random walk per symbol on
// business days. The same symbol and window always produce the same bars,
// so it doubles as an offline data source for tests and demos.
type SampleProvider struct {
	symbols []string
}

// NewSampleProvider creates a provider that lists symbols from Symbols.
// GetOHLCV accepts any symbol.
func NewSampleProvider(symbols ...string) *SampleProvider {
	return &SampleProvider{symbols: append([]string(nil), symbols...)}
}

// Symbols returns the symbols the provider was created with.
func (p *SampleProvider) Symbols(ctx context.Context) ([]string, error) {
	return append([]string(nil), p.symbols...), nil
}

// GetOHLCV returns generated bars for every weekday in [start, end].
func (p *SampleProvider) GetOHLCV(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	start, end = domain.Day(start), domain.Day(end)
	if end.Before(start) {
		return nil, nil
	}

	rng := rand.New(rand.NewPCG(seed(symbol), 0))
	price := initialPrice(symbol)

	var bars []domain.Bar
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		price *= 1 + SampleDrift + SampleVolatility*rng.NormFloat64()
		high := price * (1 + math.Abs(0.01*rng.NormFloat64()))
		low := price * (1 - math.Abs(0.01*rng.NormFloat64()))
		open := price * (1 + 0.005*rng.NormFloat64())
		volume := int64(math.Exp(12 + rng.NormFloat64()))

		bars = append(bars, domain.Bar{
			Date:   d,
			Open:   math.Round(open),
			High:   math.Round(high),
			Low:    math.Round(low),
			Close:  math.Round(price),
			Volume: volume,
		})
	}
	return bars, nil
}

func initialPrice(symbol string) float64 {
	if strings.Contains(symbol, SampleLowPriceCode) {
		return SampleLowPrice
	}
	return SampleBasePrice
}

func seed(symbol string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return h.Sum64()
}
