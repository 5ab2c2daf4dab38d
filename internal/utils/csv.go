package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"stockBacktester/internal/domain"
)

var barHeader = []string{"date", "open", "high", "low", "close", "volume"}

// WriteBarsToCSV writes bars to filename with a date,open,high,low,close,volume header.
func WriteBarsToCSV(bars []domain.Bar, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteBars(file, bars)
}

// WriteBars writes bars as CSV to w.
func WriteBars(w io.Writer, bars []domain.Bar) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(barHeader); err != nil {
		return err
	}
	for _, b := range bars {
		if err := writer.Write([]string{
			b.Date.Format(domain.DateLayout),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadBarsFromCSV reads bars written by WriteBarsToCSV.
func ReadBarsFromCSV(filename string) ([]domain.Bar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadBars(file)
}

// ReadBars parses CSV bars from r. Columns are located by header name, case
// insensitive, so extra columns and other orderings are accepted.
func ReadBars(r io.Reader) ([]domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range barHeader {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bar, err := parseBar(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBar(rec []string, cols map[string]int) (domain.Bar, error) {
	var (
		b   domain.Bar
		err error
	)
	if b.Date, err = domain.ParseDay(rec[cols["date"]]); err != nil {
		return b, err
	}
	for name, dst := range map[string]*float64{"open": &b.Open, "high": &b.High, "low": &b.Low, "close": &b.Close} {
		if *dst, err = strconv.ParseFloat(rec[cols[name]], 64); err != nil {
			return b, fmt.Errorf("%s: %w", name, err)
		}
	}
	// Some sources export fractional volume.
	vol, err := strconv.ParseFloat(rec[cols["volume"]], 64)
	if err != nil {
		return b, fmt.Errorf("volume: %w", err)
	}
	b.Volume = int64(vol)
	return b, nil
}

// WriteTradesToCSV writes a trade log to filename.
func WriteTradesToCSV(trades []domain.TradeRecord, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"date", "symbol", "side", "quantity", "price", "commission", "tax", "profit", "profit_rate", "reason"}); err != nil {
		return err
	}
	for _, t := range trades {
		if err := writer.Write([]string{
			t.Date.Format(domain.DateLayout),
			t.Symbol,
			string(t.Side),
			strconv.FormatInt(t.Quantity, 10),
			strconv.FormatFloat(t.Price, 'f', -1, 64),
			strconv.FormatFloat(t.Commission, 'f', -1, 64),
			strconv.FormatFloat(t.Tax, 'f', -1, 64),
			strconv.FormatFloat(t.Profit, 'f', -1, 64),
			strconv.FormatFloat(t.ProfitRate, 'f', -1, 64),
			t.Reason,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
