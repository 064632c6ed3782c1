// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one study through normalization, metadata
// validation, citation checks, cached provider analysis, and scoring.
package pipeline

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/pdiddy/trust-engine/internal/cache"
	"github.com/pdiddy/trust-engine/internal/citations"
	"github.com/pdiddy/trust-engine/internal/metadata"
	"github.com/pdiddy/trust-engine/internal/normalize"
	"github.com/pdiddy/trust-engine/internal/observability"
	"github.com/pdiddy/trust-engine/internal/trust"
	"github.com/pdiddy/trust-engine/pkg/types"
)

// Input limits.
const (
	minTextChars      = 100
	maxTextChars      = 500_000
	minPDFBytes       = 100
	maxPDFBytes       = 25 << 20
	minExtractedChars = 100
)

// Citation-quality penalty applied to the bias category.
const (
	lowCitationPenalty = 2.0
	lowCitationIssue   = "Low citation quality"
)

// Analyzer produces the merged provider analysis for a study.
type Analyzer interface {
	Analyze(ctx context.Context, content *types.ExtractedContent, md types.StudyMetadata) (types.Analysis, error)
}

// Pipeline holds the process-wide collaborators. One Pipeline serves any
// number of concurrent AnalyzeStudy calls; only Cache is shared state.
type Pipeline struct {
	Adapters map[types.InputType]normalize.Adapter
	Analyzer Analyzer
	Cache    *cache.Cache[types.Analysis]
	Logger   zerolog.Logger
	Metrics  *observability.Metrics

	// Now stamps results. Defaults to time.Now.
	Now func() time.Time
}

// AnalyzeStudy scores one study. Every failure is a *Error.
func (p *Pipeline) AnalyzeStudy(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResult, error) {
	log := observability.WithRequestContext(p.Logger, observability.RequestIDFromContext(ctx), req.InputType)
	start := time.Now()

	result, err := p.analyze(ctx, req, log)
	outcome := "ok"
	if err != nil {
		outcome = string(err.Kind)
		log.Warn().Err(err).Str("kind", string(err.Kind)).Dur("elapsed", time.Since(start)).Msg("analysis failed")
		p.Metrics.ObserveAnalysis(string(req.InputType), outcome)
		return nil, err
	}
	p.Metrics.ObserveAnalysis(string(req.InputType), outcome)
	p.Metrics.ObserveScore(result.TrustScore.Overall)
	log.Info().
		Int("overall", result.TrustScore.Overall).
		Str("rating", string(result.TrustScore.Rating)).
		Bool("cached", result.Cached).
		Dur("elapsed", time.Since(start)).
		Msg("analysis complete")
	return result, nil
}

func (p *Pipeline) analyze(ctx context.Context, req types.AnalysisRequest, log zerolog.Logger) (*types.AnalysisResult, *Error) {
	input, perr := validateInput(req)
	if perr != nil {
		return nil, perr
	}

	adapter, ok := p.Adapters[req.InputType]
	if !ok {
		return nil, inputError("Unsupported input type. Use url, pdf, doi, or text.")
	}

	var content *types.ExtractedContent
	if err := p.stage(log, "normalize", func() error {
		var err error
		content, err = adapter.Normalize(ctx, input)
		return err
	}); err != nil {
		return nil, extractionError(err)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(content.Text)); n < minExtractedChars {
		return nil, insufficientText(req.InputType, n)
	}

	var md types.StudyMetadata
	p.stage(log, "metadata", func() error {
		md = metadata.Validate(metadata.Extract(content), content.Text, log)
		return nil
	})

	var verification types.CitationVerification
	p.stage(log, "citations", func() error {
		verification = citations.VerifyCitations(citations.ExtractCitations(content), content)
		quality := citations.AnalyzeQuality(verification, content)
		md.CitationQuality = &quality
		return nil
	})

	key := cache.Key(req.InputType, req.Content)
	merged, cached := p.Cache.Get(key)
	p.Metrics.ObserveCache(cached)
	log.Debug().Bool("hit", cached).Msg("analysis cache lookup")
	if !cached {
		if err := p.stage(log, "analysis", func() error {
			var err error
			merged, err = p.Analyzer.Analyze(ctx, content, md)
			return err
		}); err != nil {
			return nil, providerError(err)
		}
		p.Cache.Set(key, merged)
	}
	// The cache entry is shared; the result owns its own copy.
	merged = merged.Clone()

	breakdown := merged.Breakdown
	if md.CitationQuality.Quality == types.CitationQualityLow {
		applyCitationPenalty(&breakdown)
	}

	var score types.TrustScore
	if err := p.stage(log, "score", func() error {
		var err error
		score, err = trust.Calculate(breakdown, merged.FlawDetection, merged.EvidenceHierarchy)
		return err
	}); err != nil {
		return nil, scoringError(err)
	}

	md.Credibility = merged.Credibility
	return &types.AnalysisResult{
		InputType:         req.InputType,
		SourceURL:         content.SourceURL,
		Metadata:          md,
		TrustScore:        score,
		FlawDetection:     merged.FlawDetection,
		ExpertContext:     merged.ExpertContext,
		EvidenceHierarchy: merged.EvidenceHierarchy,
		CausalInference:   merged.CausalInference,
		SimpleSummary:     merged.SimpleSummary,
		TechnicalCritique: merged.TechnicalCritique,
		BiasReport:        merged.BiasReport,
		Recommendations:   merged.Recommendations,
		KeyTakeaways:      merged.KeyTakeaways,
		StudyLimitations:  merged.StudyLimitations,
		Citations:         verification,
		Cached:            cached,
		AnalyzedAt:        p.now(),
	}, nil
}

// stage times fn and records it in logs and metrics.
func (p *Pipeline) stage(log zerolog.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	p.Metrics.ObserveStage(name, elapsed)
	log.Debug().Str("stage", name).Dur("elapsed", elapsed).Bool("ok", err == nil).Msg("stage finished")
	return err
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// applyCitationPenalty lowers the bias score and records why.
func applyCitationPenalty(b *types.AnalysisScores) {
	b.Bias.Score = max(0, b.Bias.Score-lowCitationPenalty)
	b.Bias.Issues = append(b.Bias.Issues, lowCitationIssue)
}

// validateInput checks the raw request and returns what the adapter
// receives. PDF content is base64-decoded here.
func validateInput(req types.AnalysisRequest) (string, *Error) {
	content := req.Content

	switch req.InputType {
	case types.InputURL:
		raw := strings.TrimSpace(content)
		u, err := url.Parse(raw)
		if !strings.HasPrefix(strings.ToLower(raw), "http") || err != nil || u.Host == "" {
			return "", inputError("Enter a valid URL starting with http:// or https://.")
		}
		return raw, nil

	case types.InputPDF:
		if strings.TrimSpace(content) == "" {
			return "", inputError("The PDF upload is empty.")
		}
		data, err := decodeBase64(content)
		if err != nil {
			return "", inputError("The PDF upload is not valid base64.")
		}
		if len(data) < minPDFBytes {
			return "", inputError("The PDF file is too small to be a study. Upload the complete file.")
		}
		if len(data) > maxPDFBytes {
			return "", inputError("The PDF file is larger than 25 MB.")
		}
		return string(data), nil

	case types.InputDOI:
		id := strings.TrimSpace(content)
		if id == "" {
			return "", inputError("Enter a DOI.")
		}
		return id, nil

	case types.InputText:
		n := utf8.RuneCountInString(strings.TrimSpace(content))
		if n < minTextChars {
			return "", inputError("The text is too short to analyze. Provide at least 100 characters.")
		}
		if n > maxTextChars {
			return "", inputError("The text is longer than 500,000 characters. Submit the study as a PDF instead.")
		}
		return content, nil
	}

	return "", inputError("Unsupported input type. Use url, pdf, doi, or text.")
}

// decodeBase64 accepts standard base64 with or without a data URL prefix.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	s = strings.Join(strings.Fields(s), "")
	return base64.StdEncoding.DecodeString(s)
}
