package strategies

import (
	"context"
	"time"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
)

// mockLogger is a mock implementation of the ports.Logger interface
type mockLogger struct {
	debugs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugs = append(m.debugs, msg)
}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}
func (m *mockLogger) With(fields map[string]interface{}) ports.Logger { return m }

var testStart = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

// view builds consecutive daily bars with the given closes and a flat volume.
func view(volume int64, closes ...float64) []domain.Bar {
	out := make([]domain.Bar, len(closes))
	for i, c := range closes {
		out[i] = domain.Bar{Date: testStart.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: volume}
	}
	return out
}

func flat(symbol string) domain.PositionInfo {
	return domain.PositionInfo{Symbol: symbol, MaxBuyCount: DefaultMaxBuyCount}
}

func holding(symbol string, qty int64, avg float64, buys int) domain.PositionInfo {
	return domain.PositionInfo{Symbol: symbol, Quantity: qty, AvgCost: avg, BuyCount: buys, MaxBuyCount: DefaultMaxBuyCount}
}
