// Package parquetstore persists daily bars as Parquet files, one file per
// symbol and year.
package parquetstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
)

var (
	_ ports.MarketDataProvider = (*Store)(nil)
	_ ports.BarWriter          = (*Store)(nil)
)

// BarRecord is the on-disk schema of a daily bar.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms of the UTC day
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// Store lays files out as <dir>/<symbol>/<YYYY>.parquet.
type Store struct {
	dir string
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(symbol string, year int) string {
	return filepath.Join(s.dir, symbol, strconv.Itoa(year)+".parquet")
}

// WriteBars merges bars into the year files of symbol. A bar replaces any
// stored bar of the same day.
func (s *Store) WriteBars(_ context.Context, symbol string, bars []domain.Bar) error {
	groups := make(map[int][]BarRecord)
	for _, b := range bars {
		d := domain.Day(b.Date)
		groups[d.Year()] = append(groups[d.Year()], BarRecord{
			Symbol:    symbol,
			Timestamp: d.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	for year, records := range groups {
		path := s.path(symbol, year)
		existing, _ := readFile(path)
		if err := writeFile(path, merge(existing, records)); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", symbol, year, err)
		}
	}
	return nil
}

// GetOHLCV reads the bars of symbol within [start, end], oldest first.
func (s *Store) GetOHLCV(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	start, end = domain.Day(start), domain.Day(end)

	var bars []domain.Bar
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readFile(s.path(symbol, year))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s/%d: %w", symbol, year, err)
		}
		for _, r := range records {
			d := time.UnixMilli(r.Timestamp).UTC()
			if d.Before(start) || d.After(end) {
				continue
			}
			bars = append(bars, domain.Bar{Date: d, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume})
		}
	}
	return bars, nil
}

// Symbols lists every symbol directory in the store.
func (s *Store) Symbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

func writeFile(path string, records []BarRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readFile(path string) ([]BarRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return parquet.ReadFile[BarRecord](path)
}

// merge deduplicates by timestamp, preferring incoming records, and sorts by day.
func merge(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })
	return merged
}
