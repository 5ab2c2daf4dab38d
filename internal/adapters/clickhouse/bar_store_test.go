package clickhouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"stockBacktester/internal/domain"
)

// setupTestDB starts a ClickHouse container and returns a connection with the
// schema applied.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	conn, err := NewConn(ctx, fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port()))
	require.NoError(t, err)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}
	return conn, cleanup
}

func d(m time.Month, day int) time.Time { return time.Date(2024, m, day, 0, 0, 0, 0, time.UTC) }

func TestBarStore_WriteAndRead(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(conn, true, "test")
	require.NoError(t, store.InitSchema(ctx))

	bars := []domain.Bar{
		{Date: d(1, 2), Open: 100, High: 105, Low: 99, Close: 104, Volume: 12_000},
		{Date: d(1, 3), Open: 104, High: 106, Low: 101, Close: 102, Volume: 9_000},
		{Date: d(1, 4), Open: 102, High: 103, Low: 98, Close: 99, Volume: 15_000},
	}
	require.NoError(t, store.WriteBars(ctx, "005930.KS", bars))
	require.NoError(t, store.WriteBars(ctx, "000660.KS", bars[:1]))

	got, err := store.GetOHLCV(ctx, "005930.KS", d(1, 1), d(1, 31))
	require.NoError(t, err)
	assert.Equal(t, bars, got)

	got, err = store.GetOHLCV(ctx, "005930.KS", d(1, 3), d(1, 3))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 102.0, got[0].Close)

	symbols, err := store.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"000660.KS", "005930.KS"}, symbols)

	first, last, ok, err := store.DateRange(ctx, "005930.KS")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, d(1, 2), first)
	assert.Equal(t, d(1, 4), last)

	_, _, ok, err = store.DateRange(ctx, "UNKNOWN")
	require.NoError(t, err)
	assert.False(t, ok)

	lastIngested, ok, err := store.LastIngestedDate(ctx, "005930.KS")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, d(1, 4), lastIngested)
}

func TestBarStore_ReinsertIsIdempotent(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(conn, false, "test")
	require.NoError(t, store.InitSchema(ctx))

	bar := domain.Bar{Date: d(2, 1), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}
	require.NoError(t, store.WriteBars(ctx, "A", []domain.Bar{bar}))
	require.NoError(t, store.WriteBars(ctx, "A", []domain.Bar{bar}))

	got, err := store.GetOHLCV(ctx, "A", d(1, 1), d(12, 31))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
