// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package observability builds the structured logger and Prometheus
// metrics shared by the pipeline stages and the HTTP server.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/trust-engine/pkg/types"
)

// NewLogger creates a zerolog logger from configuration. Unknown levels
// fall back to info and unknown outputs to stderr.
func NewLogger(cfg types.LoggingConfig) zerolog.Logger {
	return newLogger(cfg, outputFor(cfg.Output))
}

func outputFor(name string) io.Writer {
	if strings.ToLower(name) == "stdout" {
		return os.Stdout
	}
	return os.Stderr
}

func newLogger(cfg types.LoggingConfig, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		With().
		Timestamp().
		Logger().
		Level(ParseLevel(cfg.Level))
}

// ParseLevel converts a level name to a zerolog.Level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithRequestContext adds per-request fields to a logger.
func WithRequestContext(logger zerolog.Logger, requestID string, inputType types.InputType) zerolog.Logger {
	return logger.With().
		Str("request_id", requestID).
		Str("input_type", string(inputType)).
		Logger()
}

// WithPhaseContext adds provider phase fields to a logger.
func WithPhaseContext(logger zerolog.Logger, phase string, attempt int) zerolog.Logger {
	return logger.With().
		Str("phase", phase).
		Int("attempt", attempt).
		Logger()
}
