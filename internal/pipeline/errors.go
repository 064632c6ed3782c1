// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"errors"
	"fmt"

	"github.com/pdiddy/trust-engine/internal/analysis"
	"github.com/pdiddy/trust-engine/internal/normalize"
	"github.com/pdiddy/trust-engine/pkg/types"
)

// ErrorKind is the user-facing error category.
type ErrorKind string

const (
	KindInput      ErrorKind = "input"
	KindExtraction ErrorKind = "extraction"
	KindProvider   ErrorKind = "provider"
	KindScoring    ErrorKind = "scoring"
)

// Error is the only error AnalyzeStudy returns. Message is safe to show to
// the person who submitted the study; Err keeps the internal cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether retrying the same request later may succeed.
func (e *Error) Transient() bool {
	var pe *analysis.ProviderError
	if errors.As(e.Err, &pe) {
		return pe.Transient()
	}
	var ee *normalize.ExtractionError
	if errors.As(e.Err, &ee) {
		switch ee.Kind {
		case normalize.KindFetchTimeout, normalize.KindDOITimeout, normalize.KindDOIUnavailable:
			return true
		}
	}
	return false
}

func inputError(msg string) *Error {
	return &Error{Kind: KindInput, Message: msg}
}

// extractionError translates an adapter failure into a cause-specific
// message.
func extractionError(err error) *Error {
	msg := "The study could not be read. Check the input and try again."

	var ee *normalize.ExtractionError
	if errors.As(err, &ee) {
		switch ee.Kind {
		case normalize.KindFetchFailed:
			msg = "The study page could not be fetched. Check that the URL is reachable and try again."
		case normalize.KindFetchTimeout:
			msg = "The study page took too long to respond. Try again later, or upload the PDF instead."
		case normalize.KindHTTPStatus:
			msg = fmt.Sprintf("The study page returned HTTP %d. The site may block automated access; upload the PDF or paste the text instead.", ee.StatusCode)
		case normalize.KindPDFEncrypted:
			msg = "The PDF is encrypted or password protected. Remove the protection and upload it again."
		case normalize.KindPDFParse:
			msg = "The PDF could not be parsed. It may be corrupted; try another copy or paste the text instead."
		case normalize.KindDOINotFound:
			msg = "No study was found for this DOI. Check that it is correct."
		case normalize.KindDOITimeout:
			msg = "The DOI registry did not respond in time. Try again shortly."
		case normalize.KindDOIUnavailable:
			msg = "The DOI registry is temporarily unavailable. Try again shortly."
		}
	}
	return &Error{Kind: KindExtraction, Message: msg, Err: err}
}

// insufficientText explains, per input type, why too little text came out
// of extraction and what to do about it.
func insufficientText(inputType types.InputType, chars int) *Error {
	var msg string
	switch inputType {
	case types.InputURL:
		msg = "Too little text could be extracted from the page. It may require a login or render its content with JavaScript; upload the PDF or paste the text instead."
	case types.InputPDF:
		msg = "Too little text could be extracted from the PDF. It may be a scanned image without a text layer; paste the text instead."
	case types.InputDOI:
		msg = "The DOI record has no abstract to analyze. Submit the article URL or upload the PDF instead."
	default:
		msg = fmt.Sprintf("The text is too short to analyze. Provide at least %d characters.", minTextChars)
	}
	return &Error{Kind: KindExtraction, Message: msg, Err: fmt.Errorf("extracted %d characters", chars)}
}

// providerError distinguishes transient failures from configuration
// problems.
func providerError(err error) *Error {
	msg := "The analysis service failed. Try again shortly."

	var pe *analysis.ProviderError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case analysis.KindAuth:
			msg = "The analysis service rejected its credentials. Check the provider API key configuration."
		case analysis.KindRateLimited, analysis.KindTimeout, analysis.KindUnavailable:
			msg = "The analysis service is busy or unavailable. Try again shortly."
		case analysis.KindRejected:
			msg = "The analysis service rejected the request. Check the provider configuration."
		case analysis.KindMalformed:
			msg = "The analysis service returned a response that could not be read. Try again."
		case analysis.KindCanceled:
			msg = "The analysis was canceled before it finished."
		}
	}
	return &Error{Kind: KindProvider, Message: msg, Err: err}
}

func scoringError(err error) *Error {
	return &Error{Kind: KindScoring, Message: "Analysis did not return a usable result.", Err: err}
}
