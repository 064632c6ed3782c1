// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analysis orchestrates the external analysis provider: it builds
// the study prompt, runs two differently framed phases concurrently with
// bounded retries, parses each answer permissively, and merges the two
// partial results into one analysis.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdiddy/trust-engine/internal/httputil"
	"github.com/pdiddy/trust-engine/internal/observability"
	"github.com/pdiddy/trust-engine/pkg/types"
)

// Phase identifies one of the two concurrent provider requests.
type Phase int

const (
	// PhaseMethodology covers methodology, statistics, reproducibility,
	// the evidence hierarchy, fallacies, and confounders.
	PhaseMethodology Phase = 1
	// PhaseContext covers bias, funding conflicts, expert context, and the
	// causal narrative.
	PhaseContext Phase = 2
)

func (p Phase) String() string {
	return fmt.Sprintf("phase%d", int(p))
}

// ProviderErrorKind classifies a phase failure.
type ProviderErrorKind string

const (
	KindAuth        ProviderErrorKind = "auth"
	KindRateLimited ProviderErrorKind = "rate_limited"
	KindTimeout     ProviderErrorKind = "timeout"
	KindUnavailable ProviderErrorKind = "unavailable"
	KindRejected    ProviderErrorKind = "rejected"
	KindMalformed   ProviderErrorKind = "malformed"
	KindCanceled    ProviderErrorKind = "canceled"
)

// ProviderError is returned when a phase fails for good, either at once
// (auth, rejected, malformed) or after its retries are exhausted.
type ProviderError struct {
	Phase    Phase
	Kind     ProviderErrorKind
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s after %d attempt(s): %v", e.Phase, e.Kind, e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying later.
func (e *ProviderError) Transient() bool {
	switch e.Kind {
	case KindRateLimited, KindTimeout, KindUnavailable:
		return true
	}
	return false
}

// Analyzer runs the two provider phases for a study.
type Analyzer struct {
	Provider Provider
	Config   types.ProviderConfig
	Logger   zerolog.Logger
	Metrics  *observability.Metrics

	limiter *rate.Limiter
}

// NewAnalyzer returns an Analyzer whose outbound attempts are paced by a
// token bucket shared across all requests. Zero RateLimitRPS disables
// pacing.
func NewAnalyzer(p Provider, cfg types.ProviderConfig, logger zerolog.Logger, metrics *observability.Metrics) *Analyzer {
	a := &Analyzer{Provider: p, Config: cfg, Logger: logger, Metrics: metrics}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	return a
}

// Analyze issues both phases concurrently against the same prompt and
// merges their results. If either phase fails the other is canceled and
// the failure is returned.
func (a *Analyzer) Analyze(ctx context.Context, content *types.ExtractedContent, md types.StudyMetadata) (types.Analysis, error) {
	prompt, err := BuildPrompt(content, md)
	if err != nil {
		return types.Analysis{}, fmt.Errorf("building prompt: %w", err)
	}

	var phase1, phase2 types.Analysis
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		phase1, err = a.runPhase(gctx, PhaseMethodology, prompt)
		return err
	})
	g.Go(func() error {
		var err error
		phase2, err = a.runPhase(gctx, PhaseContext, prompt)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.Analysis{}, err
	}

	return Merge(phase1, phase2), nil
}

// runPhase calls the provider until it answers, the failure is not
// retriable, or MaxRetries retries have been spent. Delays follow
// httputil.Backoff.
func (a *Analyzer) runPhase(ctx context.Context, phase Phase, prompt string) (types.Analysis, error) {
	req := CompletionRequest{
		SystemPrompt:   systemPrompt(phase),
		UserPrompt:     prompt,
		ResponseFormat: FormatJSON,
		MaxTokens:      a.Config.MaxTokens,
		Temperature:    a.Config.Temperature,
	}

	for attempt := 0; ; attempt++ {
		log := observability.WithPhaseContext(a.Logger, phase.String(), attempt+1)

		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return types.Analysis{}, interrupted(phase, attempt, err)
			}
		}

		start := time.Now()
		raw, err := a.complete(ctx, req)
		elapsed := time.Since(start)

		if err == nil {
			result, perr := ParseAnalysis(raw)
			if perr != nil {
				a.Metrics.ObserveProviderAttempt(phase.String(), string(KindMalformed), elapsed)
				log.Warn().Err(perr).Int("response_chars", len(raw)).Msg("provider response could not be parsed")
				return types.Analysis{}, &ProviderError{Phase: phase, Kind: KindMalformed, Attempts: attempt + 1, Err: perr}
			}
			a.Metrics.ObserveProviderAttempt(phase.String(), "ok", elapsed)
			log.Debug().Dur("elapsed", elapsed).Msg("provider phase complete")
			return result, nil
		}

		if ctx.Err() != nil {
			return types.Analysis{}, interrupted(phase, attempt+1, ctx.Err())
		}

		pe := classify(phase, err, attempt+1)
		a.Metrics.ObserveProviderAttempt(phase.String(), string(pe.Kind), elapsed)
		if !pe.Transient() || attempt >= a.Config.MaxRetries {
			log.Error().Err(err).Str("kind", string(pe.Kind)).Msg("provider phase failed")
			return types.Analysis{}, pe
		}

		delay := httputil.Backoff(a.Config.RetryBaseDelay, attempt, a.Config.MaxJitter)
		a.Metrics.ObserveRetry(phase.String())
		log.Warn().Err(err).Str("kind", string(pe.Kind)).Dur("delay", delay).Msg("retrying provider call")
		if err := httputil.Sleep(ctx, delay); err != nil {
			return types.Analysis{}, interrupted(phase, attempt+1, err)
		}
	}
}

// complete makes one provider call bounded by the per-call timeout.
func (a *Analyzer) complete(ctx context.Context, req CompletionRequest) (string, error) {
	if a.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Config.Timeout)
		defer cancel()
	}
	return a.Provider.Complete(ctx, req)
}

// classify maps a provider error to a ProviderError kind.
// interrupted reports a phase stopped by the caller's context. A caller
// deadline is a timeout; anything else is a cancellation.
func interrupted(phase Phase, attempts int, err error) *ProviderError {
	kind := KindCanceled
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &ProviderError{Phase: phase, Kind: kind, Attempts: attempts, Err: err}
}

func classify(phase Phase, err error, attempts int) *ProviderError {
	pe := &ProviderError{Phase: phase, Attempts: attempts, Err: err}

	var apiErr *APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		pe.Kind = KindTimeout
	case errors.As(err, &apiErr):
		switch {
		case apiErr.IsAuth():
			pe.Kind = KindAuth
		case apiErr.StatusCode == 429:
			pe.Kind = KindRateLimited
		case apiErr.IsRetriable():
			pe.Kind = KindUnavailable
		default:
			pe.Kind = KindRejected
		}
	default:
		pe.Kind = KindMalformed
	}
	return pe
}
