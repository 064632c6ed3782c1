// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trust-engine/pkg/types"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"info":    zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewLogger_JSONWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(types.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	logger = WithRequestContext(logger, "req-1", types.InputDOI)
	logger = WithPhaseContext(logger, "phase1", 2)

	logger.Debug().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "doi", entry["input_type"])
	assert.Equal(t, "phase1", entry["phase"])
	assert.EqualValues(t, 2, entry["attempt"])
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(types.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
	logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveAnalysis("text", "ok")
	m.ObserveAnalysis("text", "ok")
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveEvictions(3)
	m.ObserveEvictions(0)
	m.ObserveProviderAttempt("phase1", "ok", time.Second)
	m.ObserveRetry("phase2")
	m.ObserveScore(72)
	m.ObserveStage("normalize", 10*time.Millisecond)
	m.ObserveHTTP("/v1/analyze", 422)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("text", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CacheEvictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderAttempts.WithLabelValues("phase1", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRetries.WithLabelValues("phase2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/v1/analyze", "4xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TrustScores))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAnalysis("url", "ok")
		m.ObserveStage("x", time.Second)
		m.ObserveCache(true)
		m.ObserveEvictions(1)
		m.ObserveProviderAttempt("phase1", "ok", time.Second)
		m.ObserveRetry("phase1")
		m.ObserveScore(1)
		m.ObserveHTTP("/", 200)
	})
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
