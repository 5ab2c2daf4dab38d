package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleProvider_BusinessDaysOnly(t *testing.T) {
	p := NewSampleProvider()
	bars, err := p.GetOHLCV(context.Background(), "005930.KS", jan2, jan31)
	require.NoError(t, err)
	require.Len(t, bars, 22) // January 2024 has 22 weekdays from the 2nd

	for i, b := range bars {
		assert.NotEqual(t, time.Saturday, b.Date.Weekday())
		assert.NotEqual(t, time.Sunday, b.Date.Weekday())
		assert.Greater(t, b.Close, 0.0)
		assert.Greater(t, b.Volume, int64(0))
		if i > 0 {
			assert.True(t, b.Date.After(bars[i-1].Date))
		}
	}
}

func TestSampleProvider_Deterministic(t *testing.T) {
	p := NewSampleProvider()
	ctx := context.Background()

	a, err := p.GetOHLCV(ctx, "000660.KS", jan2, jan31)
	require.NoError(t, err)
	b, err := p.GetOHLCV(ctx, "000660.KS", jan2, jan31)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := p.GetOHLCV(ctx, "035420.KS", jan2, jan31)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestSampleProvider_InitialPriceLevel(t *testing.T) {
	p := NewSampleProvider()
	ctx := context.Background()

	low, err := p.GetOHLCV(ctx, "005930.KS", jan2, jan2)
	require.NoError(t, err)
	high, err := p.GetOHLCV(ctx, "000660.KS", jan2, jan2)
	require.NoError(t, err)

	require.Len(t, low, 1)
	require.Len(t, high, 1)
	assert.InDelta(t, SampleLowPrice, low[0].Close, SampleLowPrice*0.2)
	assert.InDelta(t, SampleBasePrice, high[0].Close, SampleBasePrice*0.2)
}

func TestSampleProvider_EmptyWindowAndSymbols(t *testing.T) {
	p := NewSampleProvider("A", "B")
	bars, err := p.GetOHLCV(context.Background(), "A", jan31, jan2)
	require.NoError(t, err)
	assert.Empty(t, bars)

	syms, err := p.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, syms)
}
