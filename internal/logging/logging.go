// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/triage-engine/pkg/types"
)

// New returns a zap logger writing to stderr at cfg.Level, encoded as JSON
// or console text per cfg.Format.
func New(cfg types.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if cfg.Level == "" {
		level, err = zapcore.InfoLevel, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	var (
		encoding string
		encoder  zapcore.EncoderConfig
	)
	switch strings.ToLower(cfg.Format) {
	case "", "console":
		encoding = "console"
		encoder = zap.NewDevelopmentEncoderConfig()
	case "json":
		encoding = "json"
		encoder = zap.NewProductionEncoderConfig()
		encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q (want console or json)", cfg.Format)
	}

	zc := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding,
		EncoderConfig:    encoder,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return log, nil
}
