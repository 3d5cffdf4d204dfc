// Package logger wraps zap with the construction and field conventions
// used across the engine: one process-wide logger, structured fields
// instead of format strings, and a level controlled by configuration.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.Logger so callers depend on our own type rather than
// zap's directly.
type Logger struct {
	*zap.Logger
}

// NewLogger builds a production-style console logger at info level.
func NewLogger() (*Logger, error) {
	return NewLoggerWithLevel("info")
}

// NewLoggerWithLevel builds a logger at the given zap level name
// ("debug", "info", "warn", "error"). Falls back to info on an
// unrecognized level rather than failing construction.
func NewLoggerWithLevel(level string) (*Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{Logger: zl}, nil
}

// Sync flushes any buffered log entries. Safe to call on a zero-value
// Logger whose inner *zap.Logger is nil.
func (l *Logger) Sync() error {
	if l == nil || l.Logger == nil {
		return nil
	}

	return l.Logger.Sync()
}

// With returns a child logger that also returns our wrapper type.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}
