package csvstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/utils"
)

func day(i int) time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i) }

func TestStore_RoundTripAndFilter(t *testing.T) {
	ctx := context.Background()
	store := New(filepath.Join(t.TempDir(), "bars"))

	bars := []domain.Bar{
		{Date: day(0), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1000},
		{Date: day(1), Open: 10.5, High: 12, Low: 10, Close: 11.25, Volume: 2000},
		{Date: day(2), Open: 11, High: 11, Low: 10, Close: 10, Volume: 1500},
	}
	require.NoError(t, store.WriteBars(ctx, "005930.KS", bars))

	got, err := store.GetOHLCV(ctx, "005930.KS", day(0), day(10))
	require.NoError(t, err)
	assert.Equal(t, bars, got)

	got, err = store.GetOHLCV(ctx, "005930.KS", day(1), day(1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 11.25, got[0].Close)

	symbols, err := store.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"005930.KS"}, symbols)
}

func TestStore_MissingSymbol(t *testing.T) {
	store := New(t.TempDir())
	got, err := store.GetOHLCV(context.Background(), "NOPE", day(0), day(1))
	require.NoError(t, err)
	assert.Empty(t, got)

	symbols, err := New(filepath.Join(t.TempDir(), "absent")).Symbols(context.Background())
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestReadBars_HeaderOrderAndErrors(t *testing.T) {
	in := "Volume,Close,Low,High,Open,Date,Adj Close\n1200.0,101,99,102,100,2024-05-02,100.5\n"
	bars, err := utils.ReadBars(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, domain.Bar{Date: day(1), Open: 100, High: 102, Low: 99, Close: 101, Volume: 1200}, bars[0])

	_, err = utils.ReadBars(strings.NewReader("date,close\n2024-05-01,1\n"))
	assert.ErrorContains(t, err, "missing column")

	_, err = utils.ReadBars(strings.NewReader("date,open,high,low,close,volume\n05/01/2024,1,1,1,1,1\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestWriteTradesToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	trades := []domain.TradeRecord{
		{Date: day(0), Symbol: "A", Side: domain.Buy, Quantity: 10, Price: 100},
		{Date: day(3), Symbol: "A", Side: domain.Sell, Quantity: 10, Price: 110, Profit: 100, ProfitRate: 10, Reason: "take profit, full exit"},
	}
	require.NoError(t, utils.WriteTradesToCSV(trades, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2024-05-04,A,sell,10,110,0,0,100,10,\"take profit, full exit\"", lines[2])
}
