package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -----------------------------------------------------------------------------

// Logger wraps a zap sugared logger behind the printf-style interface used
// across the application (Info/Warning/Error/Critical).
type Logger struct {
	sugar *zap.SugaredLogger
}

// -----------------------------------------------------------------------------

// NewLogger creates a named application logger. Level accepts zap level names
// ("debug", "info", "warn", "error"); anything unknown falls back to info.
func NewLogger(name string, level string) *Logger {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// zap refuses only on invalid config; fall back to a bare logger
		base = zap.NewNop()
	}

	return &Logger{sugar: base.Named(name).Sugar()}
}

// -----------------------------------------------------------------------------

// NewNopLogger returns a logger that discards everything. Used by tests.
func NewNopLogger() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// -----------------------------------------------------------------------------

// Debug logs a formatted debug message
func (l *Logger) Debug(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs a formatted informational message
func (l *Logger) Info(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs a formatted warning message
func (l *Logger) Warning(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs a formatted error message
func (l *Logger) Error(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs a formatted error message for unrecoverable conditions. The
// caller decides whether to exit; the logger never does.
func (l *Logger) Critical(format string, args ...any) {
	l.sugar.Errorf("CRITICAL: "+format, args...)
}

// -----------------------------------------------------------------------------

// Sync flushes buffered log entries. Call on shutdown.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}
