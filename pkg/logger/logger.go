package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap sugared logger with key-value style methods for domain
// services. Infrastructure code that prefers typed fields can reach the
// underlying *zap.Logger through Zap().
type Logger struct {
	sugar *zap.SugaredLogger
	base  *zap.Logger
}

// New creates a logger for the given level and environment. Production
// environments log JSON; everything else logs console output with colors.
func New(level, environment string) *Logger {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		base = zap.NewNop()
	}

	return &Logger{sugar: base.Sugar(), base: base}
}

// NewNop returns a logger that discards everything, for tests
func NewNop() *Logger {
	base := zap.NewNop()
	return &Logger{sugar: base.Sugar(), base: base}
}

// Zap returns the underlying structured logger
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// With returns a child logger with the given key-value context attached
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	sugar := l.sugar.With(keysAndValues...)
	return &Logger{sugar: sugar, base: sugar.Desugar()}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.sugar.Fatalw(msg, keysAndValues...)
}

// Sync flushes buffered log entries
func (l *Logger) Sync() error {
	return l.base.Sync()
}
