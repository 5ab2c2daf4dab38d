package ports

import "context"

// Logger defines a standard interface for logging messages and errors.
// Handles are passed explicitly; there is no process-wide logger.
type Logger interface {
	// Debug logs a message at Debug level.
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	// Info logs a message at Info level.
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	// Warn logs a message at Warning level.
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error logs an error message at Error level.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
	// With returns a child logger that attaches fields to every entry.
	// The receiver is not modified.
	With(fields map[string]interface{}) Logger
}
