// Package logging builds the zap logger used throughout the process. It
// centralizes only construction: every component receives the same injected
// SugaredLogger rather than constructing its own or falling back to a
// package-level global.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Development enables human-readable console output and debug level;
	// production builds JSON output at info level.
	Development bool
}

// New builds a *zap.SugaredLogger per opts.
func New(opts Options) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards everything, for tests that need to
// satisfy a *zap.SugaredLogger parameter without asserting on log output.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
