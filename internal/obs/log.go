package obs

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerMu sync.Mutex
	logger   *zap.Logger
)

// Logger returns the shared structured logger. Defaults to a production
// JSON logger writing to stdout until InitLogger overrides it.
func Logger() *zap.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger == nil {
		logger = mustBuild("info")
	}
	return logger
}

// InitLogger configures the shared logger with the given level
// ("debug", "info", "warn", "error").
func InitLogger(level string) *zap.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = mustBuild(level)
	return logger
}

// SetLogger swaps the shared logger. Intended for tests capturing output.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

// Sync flushes buffered log entries. Safe to call on shutdown.
func Sync() {
	loggerMu.Lock()
	l := logger
	loggerMu.Unlock()
	if l != nil {
		_ = l.Sync()
	}
}

func mustBuild(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
