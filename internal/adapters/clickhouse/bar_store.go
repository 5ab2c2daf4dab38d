package clickhouse

import (
	"context"
	"fmt"
	"time"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
)

// Schema of the bar table and the ingestion log.
const (
	createOHLCVTable = `
		CREATE TABLE IF NOT EXISTS stock_ohlcv (
			ticker          String,
			date            Date,
			open            Float64,
			high            Float64,
			low             Float64,
			close           Float64,
			adjusted_close  Float64,
			volume          UInt64,
			source          String,
			ingestion_time  DateTime DEFAULT now()
		)
		ENGINE = ReplacingMergeTree(ingestion_time)
		PARTITION BY toYYYYMM(date)
		ORDER BY (ticker, date)
		SETTINGS index_granularity = 8192
	`
	createIngestionLogTable = `
		CREATE TABLE IF NOT EXISTS ingestion_log (
			ticker          String,
			last_date       Date,
			last_ingestion  DateTime,
			record_count    UInt32,
			status          String
		)
		ENGINE = ReplacingMergeTree(last_ingestion)
		ORDER BY ticker
	`
)

// BarStore implements ports.MarketDataProvider and ports.BarWriter on stock_ohlcv.
type BarStore struct {
	conn             *Conn
	useAdjustedClose bool
	source           string
}

var (
	_ ports.MarketDataProvider = (*BarStore)(nil)
	_ ports.BarWriter          = (*BarStore)(nil)
)

// NewBarStore creates a store. With useAdjustedClose the close column of
// returned bars is the adjusted close.
func NewBarStore(conn *Conn, useAdjustedClose bool, source string) *BarStore {
	return &BarStore{conn: conn, useAdjustedClose: useAdjustedClose, source: source}
}

// InitSchema creates the tables if they do not exist.
func (s *BarStore) InitSchema(ctx context.Context) error {
	for _, ddl := range []string{createOHLCVTable, createIngestionLogTable} {
		if err := s.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *BarStore) closeColumn() string {
	if s.useAdjustedClose {
		return "adjusted_close"
	}
	return "close"
}

// GetOHLCV returns the bars of symbol within [start, end], ordered by date.
func (s *BarStore) GetOHLCV(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	query := fmt.Sprintf(`
		SELECT date, open, high, low, %s AS close, volume
		FROM stock_ohlcv FINAL
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, s.closeColumn())

	rows, err := s.conn.Query(ctx, query, symbol, domain.Day(start), domain.Day(end))
	if err != nil {
		return nil, fmt.Errorf("query bars for %s: %v: %w", symbol, err, ports.ErrQueryFailed)
	}
	defer rows.Close()

	return scanBars(rows)
}

// Symbols returns every ticker in the table, sorted.
func (s *BarStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT ticker FROM stock_ohlcv ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("query tickers: %v: %w", err, ports.ErrQueryFailed)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}
		symbols = append(symbols, t)
	}
	return symbols, rows.Err()
}

// DateRange returns the first and last stored day of symbol. ok is false
// when the symbol has no rows.
func (s *BarStore) DateRange(ctx context.Context, symbol string) (first, last time.Time, ok bool, err error) {
	var count uint64
	err = s.conn.QueryRow(ctx, `
		SELECT min(date), max(date), count()
		FROM stock_ohlcv
		WHERE ticker = ?
	`, symbol).Scan(&first, &last, &count)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("query date range: %v: %w", err, ports.ErrQueryFailed)
	}
	if count == 0 {
		return time.Time{}, time.Time{}, false, nil
	}
	return domain.Day(first), domain.Day(last), true, nil
}

// WriteBars inserts bars for symbol and records the ingestion. Re-inserted days
// collapse on merge; reads use FINAL so duplicates are never visible.
func (s *BarStore) WriteBars(ctx context.Context, symbol string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO stock_ohlcv (
			ticker, date, open, high, low, close, adjusted_close, volume, source
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	last := bars[0].Date
	for _, b := range bars {
		if b.Date.After(last) {
			last = b.Date
		}
		err = batch.Append(
			symbol, domain.Day(b.Date), b.Open, b.High, b.Low,
			b.Close, b.Close, uint64(b.Volume), s.source,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO ingestion_log (ticker, last_date, last_ingestion, record_count, status)
		VALUES (?, ?, ?, ?, ?)
	`, symbol, domain.Day(last), time.Now().UTC().Truncate(time.Second), uint32(len(bars)), "success")
	if err != nil {
		return fmt.Errorf("record ingestion: %w", err)
	}
	return nil
}

// LastIngestedDate returns the newest day recorded in the ingestion log for symbol.
func (s *BarStore) LastIngestedDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT last_date
		FROM ingestion_log
		WHERE ticker = ?
		ORDER BY last_ingestion DESC
		LIMIT 1
	`, symbol)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query ingestion log: %v: %w", err, ports.ErrQueryFailed)
	}
	defer rows.Close()

	if !rows.Next() {
		return time.Time{}, false, rows.Err()
	}
	var last time.Time
	if err := rows.Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("scan ingestion log: %w", err)
	}
	return domain.Day(last), true, nil
}

func scanBars(rows chRows) ([]domain.Bar, error) {
	var bars []domain.Bar
	for rows.Next() {
		var (
			b      domain.Bar
			volume uint64
		)
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &volume); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.Date = domain.Day(b.Date)
		b.Volume = int64(volume)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return bars, nil
}
