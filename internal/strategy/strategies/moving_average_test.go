package strategies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockBacktester/internal/domain"
)

func TestMAStrategy_Decide(t *testing.T) {
	s, err := NewMAStrategy(Params{"ma_period": 3}, &mockLogger{})
	require.NoError(t, err)
	assert.Equal(t, 3, s.(*MAStrategy).RequiredDataPoints())

	tests := []struct {
		name    string
		view    []domain.Bar
		pos     domain.PositionInfo
		cash    float64
		want    domain.SignalType
		wantQty int64
	}{
		{"shorter than period", view(20_000, 10, 13), flat("A"), 10_000_000, domain.SignalHold, 0},
		{"close above MA buys a position", view(20_000, 10, 10, 13), flat("A"), 10_000_000, domain.SignalBuy, 153_846},
		{"close on MA holds", view(20_000, 10, 10, 10), flat("A"), 10_000_000, domain.SignalHold, 0},
		{"already holding above MA", view(20_000, 10, 10, 13), holding("A", 100, 10, 1), 10_000_000, domain.SignalHold, 0},
		{"close below MA sells everything", view(20_000, 13, 13, 10), holding("A", 100, 12, 1), 0, domain.SignalSell, 100},
		{"not enough cash", view(20_000, 10, 10, 13), flat("A"), 999_999, domain.SignalHold, 0},
		{"volume too low", view(9_999, 10, 10, 13), flat("A"), 10_000_000, domain.SignalHold, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := s.Decide(context.Background(), tt.view, tt.pos, tt.cash)
			assert.Equal(t, tt.want, sig.Type, sig.Reason)
			assert.Equal(t, tt.wantQty, sig.Quantity)
		})
	}
}

func TestMACross_Decide(t *testing.T) {
	s, err := NewMACross(Params{"ma_period": 3}, &mockLogger{})
	require.NoError(t, err)

	withVolumeFloor, err := NewMACross(Params{"ma_period": 3, "min_volume_threshold": 2_000}, &mockLogger{})
	require.NoError(t, err)

	tests := []struct {
		name     string
		strategy interface {
			Decide(context.Context, []domain.Bar, domain.PositionInfo, float64) domain.Signal
		}
		view    []domain.Bar
		pos     domain.PositionInfo
		cash    float64
		want    domain.SignalType
		wantQty int64
	}{
		{"above MA invests the whole seed", s, view(1_000, 10, 10, 13), flat("A"), 20_000_000, domain.SignalBuy, 769_230},
		{"above MA is capped by cash", s, view(1_000, 10, 10, 13), flat("A"), 5_000_000, domain.SignalBuy, 384_615},
		{"on MA while flat", s, view(1_000, 10, 10, 10), flat("A"), 10_000_000, domain.SignalHold, 0},
		{"on MA while holding sells", s, view(1_000, 10, 10, 10), holding("A", 50, 9, 1), 0, domain.SignalSell, 50},
		{"holding above MA", s, view(1_000, 10, 10, 13), holding("A", 50, 9, 1), 10_000_000, domain.SignalHold, 0},
		{"no cash", s, view(1_000, 10, 10, 13), flat("A"), 5, domain.SignalHold, 0},
		{"volume floor applies when set", withVolumeFloor, view(1_000, 10, 10, 13), flat("A"), 10_000_000, domain.SignalHold, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := tt.strategy.Decide(context.Background(), tt.view, tt.pos, tt.cash)
			assert.Equal(t, tt.want, sig.Type, sig.Reason)
			assert.Equal(t, tt.wantQty, sig.Quantity)
		})
	}
}

func TestMACross_DefaultsNeedLongHistory(t *testing.T) {
	s, err := NewMACross(nil, &mockLogger{})
	require.NoError(t, err)
	assert.Equal(t, 120, s.(*MACross).RequiredDataPoints())

	closes := make([]float64, 119)
	for i := range closes {
		closes[i] = 100
	}
	sig := s.Decide(context.Background(), view(1_000, closes...), flat("A"), 10_000_000)
	assert.Equal(t, domain.SignalHold, sig.Type)
}

func TestWeightedMA_Decide(t *testing.T) {
	s, err := NewWeightedMA(Params{
		"ma_period": 3,
		"weights":   map[string]interface{}{"A": 0.5},
	}, &mockLogger{})
	require.NoError(t, err)
	assert.Equal(t, WeightedMAName, s.Name())

	tests := []struct {
		name    string
		symbol  string
		view    []domain.Bar
		pos     domain.PositionInfo
		cash    float64
		want    domain.SignalType
		wantQty int64
	}{
		{"unweighted symbol is ignored", "B", view(1_000, 10, 10, 13), flat("B"), 10_000_000, domain.SignalHold, 0},
		{"buys up to its target value", "A", view(1_000, 10, 10, 13), flat("A"), 10_000_000, domain.SignalBuy, 384_615},
		{"tops up a partial holding", "A", view(1_000, 10, 10, 13), holding("A", 300_000, 10, 1), 10_000_000, domain.SignalBuy, 84_615},
		{"deficit under one unit holds", "A", view(1_000, 10, 10, 13), holding("A", 384_615, 13, 1), 10_000_000, domain.SignalHold, 0},
		{"deficit capped by cash", "A", view(1_000, 10, 10, 13), flat("A"), 1_300, domain.SignalBuy, 100},
		{"below MA sells the holding", "A", view(1_000, 13, 13, 10), holding("A", 100, 12, 1), 0, domain.SignalSell, 100},
		{"below MA while flat", "A", view(1_000, 13, 13, 10), flat("A"), 10_000_000, domain.SignalHold, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := s.Decide(context.Background(), tt.view, tt.pos, tt.cash)
			assert.Equal(t, tt.want, sig.Type, sig.Reason)
			assert.Equal(t, tt.wantQty, sig.Quantity)
			assert.Equal(t, tt.symbol, sig.Symbol)
		})
	}
}

func TestWeightedMA_RejectsNegativeWeight(t *testing.T) {
	_, err := NewWeightedMA(Params{"weights": map[string]interface{}{"A": -0.1}}, &mockLogger{})
	assert.Error(t, err)
}
