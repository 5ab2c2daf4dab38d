package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Simulation Errors
	ErrMalformedSeries  = errors.New("malformed price series")
	ErrNotCompleted     = errors.New("backtest has not completed")
	ErrUnknownStrategy  = errors.New("unknown strategy")
	ErrInvalidParameter = errors.New("invalid strategy parameter")
	ErrNoData           = errors.New("no market data available")

	// Market Data Source Errors
	ErrSourceUnavailable    = errors.New("market data source is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the market data source")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("market data source authentication failed")
	ErrInvalidAPIKeys       = errors.New("invalid API keys or permissions")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
)
