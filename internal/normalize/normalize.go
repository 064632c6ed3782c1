// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize turns each input modality (URL, PDF, DOI, raw text)
// into the common ExtractedContent document model.
package normalize

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/trust-engine/internal/httputil"
	"github.com/pdiddy/trust-engine/pkg/types"
)

// Adapter normalizes one input modality. For PDF input, input holds the
// raw file bytes.
type Adapter interface {
	Normalize(ctx context.Context, input string) (*types.ExtractedContent, error)
}

// ErrorKind classifies extraction failures so the pipeline can choose a
// cause-specific message.
type ErrorKind string

const (
	KindFetchFailed    ErrorKind = "fetch_failed"
	KindFetchTimeout   ErrorKind = "fetch_timeout"
	KindHTTPStatus     ErrorKind = "http_status"
	KindPDFEncrypted   ErrorKind = "pdf_encrypted"
	KindPDFParse       ErrorKind = "pdf_parse"
	KindDOINotFound    ErrorKind = "doi_not_found"
	KindDOITimeout     ErrorKind = "doi_timeout"
	KindDOIUnavailable ErrorKind = "doi_unavailable"
)

// ExtractionError reports why an adapter could not produce content.
type ExtractionError struct {
	Kind       ErrorKind
	Source     string
	StatusCode int
	Err        error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extraction %s for %s", e.Kind, e.Source)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Adapters builds the four input adapters keyed by input type.
func Adapters(cfg types.NormalizeConfig, fetcher *httputil.Fetcher, logger zerolog.Logger) map[types.InputType]Adapter {
	if fetcher == nil {
		fetcher = &httputil.Fetcher{}
	}
	pdf := &PDFAdapter{}
	return map[types.InputType]Adapter{
		types.InputURL:  &URLAdapter{Fetcher: fetcher, Config: cfg.URL, PDF: pdf, Logger: logger},
		types.InputPDF:  pdf,
		types.InputDOI:  &DOIAdapter{Fetcher: fetcher, Config: cfg.DOI, OpenAlexEmail: cfg.OpenAlexEmail, Logger: logger},
		types.InputText: TextAdapter{},
	}
}

// TextAdapter passes pasted text through unchanged apart from trimming.
// Length limits are enforced by the caller.
type TextAdapter struct{}

// Normalize returns the trimmed text with no metadata or sections.
func (TextAdapter) Normalize(_ context.Context, input string) (*types.ExtractedContent, error) {
	return &types.ExtractedContent{Text: strings.TrimSpace(input)}, nil
}

var (
	horizontalSpaceRe = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankLinesRe      = regexp.MustCompile(`\n{3,}`)
)

// cleanText collapses runs of horizontal whitespace, trims each line, and
// limits consecutive blank lines to one.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = horizontalSpaceRe.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
