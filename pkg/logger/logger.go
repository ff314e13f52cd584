package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ohanaexperience/ohana-backend-sub001/pkg/telemetry"
)

// Config holds logger configuration
type Config struct {
	Environment string // development, staging, production
	Debug       bool
	ServiceName string
}

var (
	global *zap.Logger = zap.NewNop()
	mu     sync.RWMutex
)

// Init initializes the global logger. Production gets JSON output,
// development gets the console encoder with colored levels.
func Init(cfg *Config) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg != nil && cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if cfg != nil && cfg.Debug {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := zapCfg.Build(zap.AddCallerSkip(0))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if cfg != nil && cfg.ServiceName != "" {
		logger = logger.With(zap.String("service", cfg.ServiceName))
	}

	mu.Lock()
	global = logger
	mu.Unlock()

	return logger, nil
}

// Get returns the global logger
func Get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// WithContext returns the global logger enriched with the trace ID from ctx
// when a span is active.
func WithContext(ctx context.Context) *zap.Logger {
	l := Get()
	if traceID := telemetry.GetTraceID(ctx); traceID != "" {
		l = l.With(zap.String("trace_id", traceID))
	}
	return l
}

// Sync flushes buffered log entries
func Sync() error {
	return Get().Sync()
}
