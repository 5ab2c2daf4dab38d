package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"stockBacktester/internal/ports"
)

// LogLevel defines the logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string level to LogLevel.
func ParseLevel(levelStr string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo // Default to Info
	}
}

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Config holds configuration for the logger.
type Config struct {
	Level  LogLevel
	Format string    // "text" (default) or "json"
	LogDir string    // When set, entries are also appended to <LogDir>/backtest_<date>.log
	Output io.Writer // Defaults to os.Stderr
}

// Logger implements ports.Logger on top of logrus.
type Logger struct {
	entry *logrus.Entry
	file  *os.File
}

var _ ports.Logger = (*Logger)(nil)

// New creates a logger from cfg.
func New(cfg Config) (*Logger, error) {
	base := logrus.New()
	base.SetLevel(cfg.Level.logrusLevel())

	if strings.EqualFold(cfg.Format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var file *os.File
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory '%s': %w", cfg.LogDir, err)
		}
		path := filepath.Join(cfg.LogDir, fmt.Sprintf("backtest_%s.log", time.Now().Format("20060102")))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file '%s': %w", path, err)
		}
		file = f
		out = io.MultiWriter(out, f)
	}
	base.SetOutput(out)

	return &Logger{entry: logrus.NewEntry(base), file: file}, nil
}

// NewStdLogger creates a text logger writing to os.Stderr.
func NewStdLogger(level LogLevel) *Logger {
	l, _ := New(Config{Level: level}) // cannot fail without LogDir
	return l
}

// NewNop creates a logger that discards everything.
func NewNop() *Logger {
	l, _ := New(Config{Level: LevelError, Output: io.Discard})
	return l
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// With returns a child logger carrying fields on every entry.
func (l *Logger) With(fields map[string]interface{}) ports.Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) log(ctx context.Context, level logrus.Level, msg string, err error, fields ...map[string]interface{}) {
	entry := l.entry
	if ctx != nil {
		entry = entry.WithContext(ctx)
	}
	if err != nil {
		entry = entry.WithError(err)
	}
	for _, f := range fields {
		if f != nil {
			entry = entry.WithFields(logrus.Fields(f))
		}
	}
	entry.Log(level, msg)
}

// Debug logs a message at Debug level.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(ctx, logrus.DebugLevel, msg, nil, fields...)
}

// Info logs a message at Info level.
func (l *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(ctx, logrus.InfoLevel, msg, nil, fields...)
}

// Warn logs a message at Warning level.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(ctx, logrus.WarnLevel, msg, nil, fields...)
}

// Error logs an error message at Error level.
func (l *Logger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.log(ctx, logrus.ErrorLevel, msg, err, fields...)
}
