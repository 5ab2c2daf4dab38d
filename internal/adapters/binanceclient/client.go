package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/jpillora/backoff"

	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	dailyInterval = "1d"
	maxLimit      = 1500
)

var _ ports.MarketDataProvider = (*Client)(nil)

// klineSource is the slice of the futures API the client needs.
type klineSource interface {
	Klines(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]*futures.Kline, error)
	Symbols(ctx context.Context) ([]string, error)
}

// futuresSource adapts *futures.Client to klineSource.
type futuresSource struct {
	client *futures.Client
}

func (f futuresSource) Klines(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]*futures.Kline, error) {
	return f.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		StartTime(start).
		EndTime(end).
		Limit(limit).
		Do(ctx)
}

func (f futuresSource) Symbols(ctx context.Context) ([]string, error) {
	info, err := f.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status == "TRADING" {
			symbols = append(symbols, s.Symbol)
		}
	}
	return symbols, nil
}

// Client serves daily bars from the Binance futures API.
type Client struct {
	source     klineSource
	logger     ports.Logger
	retryDelay time.Duration
	maxRetries int
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
	RetryDelay time.Duration // Initial delay before retrying a rate limited call
	MaxRetries int           // Retries per request before giving up
}

// New creates a new Binance client adapter. Klines are public, so keys are optional.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL})

	return newClient(futuresSource{client: client}, cfg), nil
}

func newClient(source klineSource, cfg Config) *Client {
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 1 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Client{
		source:     source,
		logger:     cfg.Logger,
		retryDelay: retryDelay,
		maxRetries: maxRetries,
	}
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Signature for this request is not valid
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1120, -1121, -1125, -1127, -1128, -1130:
			mappedErr = ports.ErrInvalidRequest
		case -2014, -2015: // API-key format invalid, or key/IP/permissions rejected
			mappedErr = ports.ErrInvalidAPIKeys
		default:
			mappedErr = ports.ErrUnknown
		}
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Symbols lists the symbols currently trading on the futures exchange.
func (c *Client) Symbols(ctx context.Context) ([]string, error) {
	symbols, err := c.source.Symbols(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, "Symbols")
	}
	return symbols, nil
}

// GetOHLCV fetches the daily bars of symbol with open days in [start, end].
// Requests are paged and rate limited pages are retried with backoff.
func (c *Client) GetOHLCV(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	op := "GetOHLCV"
	start = domain.Day(start)
	endMs := domain.Day(end).AddDate(0, 0, 1).UnixMilli() - 1

	var bars []domain.Bar
	from := start.UnixMilli()
	for from <= endMs {
		klines, err := c.klinesWithRetry(ctx, symbol, from, endMs)
		if err != nil {
			return nil, err
		}
		if len(klines) == 0 {
			break
		}
		for _, k := range klines {
			bar, err := translateKline(k)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
			}
			bars = append(bars, bar)
		}
		if len(klines) < maxLimit {
			break
		}
		from = klines[len(klines)-1].CloseTime + 1
	}

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "bars": len(bars)})
	return bars, nil
}

func (c *Client) klinesWithRetry(ctx context.Context, symbol string, from, to int64) ([]*futures.Kline, error) {
	op := "GetOHLCV"
	b := &backoff.Backoff{Min: c.retryDelay, Max: 30 * c.retryDelay, Factor: 2, Jitter: true}

	for {
		klines, err := c.source.Klines(ctx, symbol, dailyInterval, from, to, maxLimit)
		if err == nil {
			return klines, nil
		}
		mapped := c.handleError(ctx, err, op)
		if !errors.Is(mapped, ports.ErrRateLimited) || int(b.Attempt()) >= c.maxRetries {
			return nil, mapped
		}

		delay := b.Duration()
		c.logger.Warn(ctx, op+": rate limited, retrying", map[string]interface{}{
			"symbol":  symbol,
			"attempt": int(b.Attempt()),
			"delay":   delay.String(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%s operation canceled: %w: %w", op, ports.ErrContextCanceled, ctx.Err())
		}
	}
}

// --- Translation Helpers ---

func translateKline(bk *futures.Kline) (domain.Bar, error) {
	if bk == nil {
		return domain.Bar{}, errors.New("received nil historical kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing open price '%s': %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing high price '%s': %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing low price '%s': %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}
	vol, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing volume '%s': %w", bk.Volume, err)
	}

	return domain.Bar{
		Date:   domain.Day(time.UnixMilli(bk.OpenTime).UTC()),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  cls,
		Volume: int64(vol),
	}, nil
}
