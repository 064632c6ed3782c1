// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trust-engine/internal/httputil"
	"github.com/pdiddy/trust-engine/internal/observability"
	"github.com/pdiddy/trust-engine/pkg/types"
)

const (
	phase1Response = `{"breakdown": {
		"methodology": {"score": 20, "maxScore": 25, "issues": ["small sample"], "strengths": ["randomized"]},
		"evidenceStrength": {"score": 15, "maxScore": 20},
		"reproducibility": {"score": 10, "maxScore": 15},
		"statisticalValidity": {"score": 16, "maxScore": 20}
	},
	"flawDetection": {"fallacies": [{"type": "hasty generalization", "description": "d", "severity": "major"}]},
	"evidenceHierarchy": {"level": "RCT", "position": 2, "qualityWithinLevel": "high"},
	"simpleSummary": "Coffee helps a little."}`

	phase2Response = `{"breakdown": {"bias": {"score": 14, "maxScore": 20, "issues": ["industry funding"]}},
	"expertContext": {"consensus": "mixed"},
	"credibility": {"conflictsOfInterest": "none declared"},
	"biasReport": "Funded by a coffee producer."}`
)

// fakeProvider answers by phase. Handlers run concurrently.
type fakeProvider struct {
	mu     sync.Mutex
	calls  map[string]int
	phase1 func(ctx context.Context, attempt int) (string, error)
	phase2 func(ctx context.Context, attempt int) (string, error)
}

func (f *fakeProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	name := "phase2"
	handler := f.phase2
	if req.SystemPrompt == phase1System {
		name = "phase1"
		handler = f.phase1
	}
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
	attempt := f.calls[name]
	f.mu.Unlock()
	return handler(ctx, attempt)
}

func (f *fakeProvider) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func answer(s string) func(context.Context, int) (string, error) {
	return func(context.Context, int) (string, error) { return s, nil }
}

func testConfig() types.ProviderConfig {
	cfg := types.DefaultConfig().Provider
	cfg.RetryBaseDelay = time.Millisecond
	cfg.MaxJitter = 0
	cfg.RateLimitRPS = 0
	return cfg
}

func noJitter(t *testing.T) {
	t.Helper()
	old := httputil.Jitter
	httputil.Jitter = func(time.Duration) time.Duration { return 0 }
	t.Cleanup(func() { httputil.Jitter = old })
}

var testContent = &types.ExtractedContent{Text: "A randomized controlled trial of coffee and alertness in 120 adults."}

func TestAnalyze_MergesBothPhases(t *testing.T) {
	p := &fakeProvider{phase1: answer(phase1Response), phase2: answer(phase2Response)}
	a := NewAnalyzer(p, testConfig(), zerolog.Nop(), nil)

	got, err := a.Analyze(context.Background(), testContent, types.StudyMetadata{})
	require.NoError(t, err)

	assert.Equal(t, 20.0, got.Breakdown.Methodology.Score)
	assert.Equal(t, 14.0, got.Breakdown.Bias.Score)
	assert.Equal(t, []string{"industry funding"}, got.Breakdown.Bias.Issues)
	assert.Equal(t, types.SeverityHigh, got.FlawDetection.Fallacies[0].Severity)
	assert.Equal(t, "Coffee helps a little.", got.SimpleSummary)
	assert.Equal(t, "Funded by a coffee producer.", got.BiasReport)
	assert.Equal(t, "mixed", got.ExpertContext.Consensus)
	require.NotNil(t, got.Credibility)
	require.NotNil(t, got.EvidenceHierarchy)
	assert.Equal(t, 2, got.EvidenceHierarchy.Position)
	assert.Equal(t, 1, p.count("phase1"))
	assert.Equal(t, 1, p.count("phase2"))
}

func TestAnalyze_RunsPhasesConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	both := make(chan struct{})
	var once sync.Once
	handler := func(ctx context.Context, _ int) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n == 2 {
			peak.Store(2)
			once.Do(func() { close(both) })
		}
		select {
		case <-both:
		case <-time.After(2 * time.Second):
		}
		return "{}", nil
	}
	a := NewAnalyzer(&fakeProvider{phase1: handler, phase2: handler}, testConfig(), zerolog.Nop(), nil)

	_, err := a.Analyze(context.Background(), testContent, types.StudyMetadata{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), peak.Load())
}

func TestAnalyze_RetriesTransientFailures(t *testing.T) {
	noJitter(t)
	tests := []struct {
		name string
		err  error
	}{
		{"rate limited", &APIError{StatusCode: 429, Message: "slow down"}},
		{"server error", &APIError{StatusCode: 529, Message: "overloaded"}},
		{"network", &APIError{Message: "connection reset"}},
		{"timeout", context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flaky := func(_ context.Context, attempt int) (string, error) {
				if attempt < 3 {
					return "", tt.err
				}
				return phase1Response, nil
			}
			p := &fakeProvider{phase1: flaky, phase2: answer(phase2Response)}
			reg := prometheus.NewRegistry()
			a := NewAnalyzer(p, testConfig(), zerolog.Nop(), observability.NewMetrics(reg))

			got, err := a.Analyze(context.Background(), testContent, types.StudyMetadata{})
			require.NoError(t, err)
			assert.Equal(t, 20.0, got.Breakdown.Methodology.Score)
			assert.Equal(t, 3, p.count("phase1"))
			assert.Equal(t, 1, p.count("phase2"))
			assert.Equal(t, 2.0, testutil.ToFloat64(a.Metrics.ProviderRetries.WithLabelValues("phase1")))
		})
	}
}

func TestAnalyze_GivesUpAfterMaxRetries(t *testing.T) {
	noJitter(t)
	failing := func(context.Context, int) (string, error) {
		return "", &APIError{StatusCode: 503, Message: "unavailable"}
	}
	p := &fakeProvider{phase1: answer(phase1Response), phase2: failing}
	a := NewAnalyzer(p, testConfig(), zerolog.Nop(), nil)

	_, err := a.Analyze(context.Background(), testContent, types.StudyMetadata{})
	require.Error(t, err)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, PhaseContext, pe.Phase)
	assert.Equal(t, KindUnavailable, pe.Kind)
	assert.Equal(t, 3, pe.Attempts)
	assert.True(t, pe.Transient())
	assert.Equal(t, 3, p.count("phase2"))
}

func TestAnalyze_NoRetryOnPermanentFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ProviderErrorKind
	}{
		{"unauthorized", &APIError{StatusCode: 401, Message: "invalid x-api-key"}, KindAuth},
		{"forbidden", &APIError{StatusCode: 403}, KindAuth},
		{"bad request", &APIError{StatusCode: 400, Message: "prompt too long"}, KindRejected},
		{"not found", &APIError{StatusCode: 404}, KindRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failing := func(context.Context, int) (string, error) { return "", tt.err }
			p := &fakeProvider{phase1: failing, phase2: answer(phase2Response)}
			a := NewAnalyzer(p, testConfig(), zerolog.Nop(), nil)

			_, err := a.Analyze(context.Background(), testContent, types.StudyMetadata{})
			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.want, pe.Kind)
			assert.Equal(t, 1, pe.Attempts)
			assert.False(t, pe.Transient())
			assert.Equal(t, 1, p.count("phase1"))
		})
	}
}

func TestAnalyze_MalformedResponseFailsPhase(t *testing.T) {
	p := &fakeProvider{phase1: answer("I cannot evaluate this study."), phase2: answer(phase2Response)}
	a := NewAnalyzer(p, testConfig(), zerolog.Nop(), nil)

	_, err := a.Analyze(context.Background(), testContent, types.StudyMetadata{})
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindMalformed, pe.Kind)
	assert.ErrorIs(t, err, ErrNoJSON)
	assert.Equal(t, 1, p.count("phase1"))
}

func TestAnalyze_FailureCancelsOtherPhase(t *testing.T) {
	canceled := make(chan struct{})
	slow := func(ctx context.Context, _ int) (string, error) {
		select {
		case <-ctx.Done():
			close(canceled)
			return "", &APIError{Message: ctx.Err().Error(), Err: ctx.Err()}
		case <-time.After(5 * time.Second):
			return "{}", nil
		}
	}
	failing := func(context.Context, int) (string, error) { return "", &APIError{StatusCode: 401} }
	a := NewAnalyzer(&fakeProvider{phase1: slow, phase2: failing}, testConfig(), zerolog.Nop(), nil)

	_, err := a.Analyze(context.Background(), testContent, types.StudyMetadata{})
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindAuth, pe.Kind)

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("phase 1 was not canceled")
	}
}

func TestAnalyze_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	block := func(ctx context.Context, _ int) (string, error) {
		<-ctx.Done()
		return "", &APIError{Message: ctx.Err().Error(), Err: ctx.Err()}
	}
	a := NewAnalyzer(&fakeProvider{phase1: block, phase2: block}, testConfig(), zerolog.Nop(), nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := a.Analyze(ctx, testContent, types.StudyMetadata{})
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindCanceled, pe.Kind)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_CallerDeadlineIsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	block := func(ctx context.Context, _ int) (string, error) {
		<-ctx.Done()
		return "", &APIError{Message: ctx.Err().Error(), Err: ctx.Err()}
	}
	a := NewAnalyzer(&fakeProvider{phase1: block, phase2: block}, testConfig(), zerolog.Nop(), nil)

	_, err := a.Analyze(ctx, testContent, types.StudyMetadata{})
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindTimeout, pe.Kind)
	assert.True(t, pe.Transient())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnalyze_PerCallTimeoutIsRetried(t *testing.T) {
	noJitter(t)
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	hangOnce := func(ctx context.Context, attempt int) (string, error) {
		if attempt == 1 {
			<-ctx.Done()
			return "", &APIError{Message: "deadline", Err: ctx.Err()}
		}
		return phase1Response, nil
	}
	p := &fakeProvider{phase1: hangOnce, phase2: answer(phase2Response)}
	a := NewAnalyzer(p, cfg, zerolog.Nop(), nil)

	_, err := a.Analyze(context.Background(), testContent, types.StudyMetadata{})
	require.NoError(t, err)
	assert.Equal(t, 2, p.count("phase1"))
}

func TestNewAnalyzer_RateLimiter(t *testing.T) {
	cfg := testConfig()
	assert.Nil(t, NewAnalyzer(nil, cfg, zerolog.Nop(), nil).limiter)

	cfg.RateLimitRPS = 5
	cfg.RateLimitBurst = 0
	a := NewAnalyzer(nil, cfg, zerolog.Nop(), nil)
	require.NotNil(t, a.limiter)
	assert.Equal(t, 1, a.limiter.Burst())
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "phase1", PhaseMethodology.String())
	assert.Equal(t, "phase2", PhaseContext.String())
}
