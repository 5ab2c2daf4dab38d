// Package csvstore keeps one CSV file of daily bars per symbol in a directory.
package csvstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
	"stockBacktester/internal/utils"
)

const ext = ".csv"

// Store reads and writes <dir>/<symbol>.csv files.
type Store struct {
	dir string
}

// New returns a store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(symbol string) string {
	return filepath.Join(s.dir, symbol+ext)
}

// GetOHLCV returns the stored bars of symbol within [start, end], oldest first.
// A symbol without a file yields no bars.
func (s *Store) GetOHLCV(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	bars, err := utils.ReadBarsFromCSV(s.path(symbol))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path(symbol), err)
	}

	start, end = domain.Day(start), domain.Day(end)
	out := bars[:0]
	for _, b := range bars {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Symbols lists the symbols that have a file in the store, sorted.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", s.dir, ports.ErrSourceUnavailable)
	}
	var symbols []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(symbols)
	return symbols, nil
}

// WriteBars replaces the file of symbol with bars.
func (s *Store) WriteBars(ctx context.Context, symbol string, bars []domain.Bar) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	if err := utils.WriteBarsToCSV(bars, s.path(symbol)); err != nil {
		return fmt.Errorf("write %s: %w", symbol, err)
	}
	return nil
}

var (
	_ ports.MarketDataProvider = (*Store)(nil)
	_ ports.BarWriter          = (*Store)(nil)
)
