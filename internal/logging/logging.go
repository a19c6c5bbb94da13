// Package logging builds the zap loggers used across the server. Output goes to
// stderr because stdout carries the MCP stdio stream.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger for mode: "dev" (human-readable, debug level), "prod"
// (JSON, info level) or "nop".
func New(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch mode {
	case "nop":
		return zap.NewNop(), nil
	case "prod":
		cfg = zap.NewProductionConfig()
	case "dev", "":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	default:
		return nil, fmt.Errorf("unknown log mode %q", mode)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// MustNew is New with a fallback: on error it reports to stderr and returns a
// no-op logger.
func MustNew(mode string) *zap.Logger {
	logger, err := New(mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing zap logger: %v. Falling back to no-op logger.\n", err)
		return zap.NewNop()
	}
	return logger
}
