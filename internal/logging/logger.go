// Package logging builds the application logger. The terminal belongs to the
// screen, so logs go to a file.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"instancesearch/internal/config"
)

// ParseLevel converts a config level name into a zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// New builds a JSON logger writing to settings.File at settings.Level.
// With no file configured logging is disabled.
func New(settings config.LogSettings) (*zap.Logger, error) {
	if settings.File == "" {
		return zap.NewNop(), nil
	}

	level, err := ParseLevel(settings.Level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{settings.File}
	cfg.ErrorOutputPaths = []string{settings.File}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
