// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/trust-engine/internal/doi"
	"github.com/pdiddy/trust-engine/pkg/types"
)

// doiScanChars bounds the DOI search to the front matter of a PDF.
const doiScanChars = 8000

// PDFAdapter extracts plain text from PDF bytes.
type PDFAdapter struct{}

// Normalize parses the PDF held in input (raw bytes) and returns its text,
// any title/author/DOI it can discover, and heading-based sections.
func (a *PDFAdapter) Normalize(_ context.Context, input string) (*types.ExtractedContent, error) {
	data := []byte(input)

	raw, info, err := extractPDF(data)
	if err != nil {
		kind := KindPDFParse
		if isEncryptionError(err, data) {
			kind = KindPDFEncrypted
		}
		return nil, &ExtractionError{Kind: kind, Source: "pdf", Err: err}
	}

	text := cleanText(raw)
	md := types.StudyMetadata{
		Title:   info.title,
		Authors: info.authors,
	}
	if md.Title == "" {
		md.Title = guessTitle(text)
	}

	front := text
	if len(front) > doiScanChars {
		front = front[:doiScanChars]
	}
	md.DOI = doi.Find(front)

	return &types.ExtractedContent{
		Text:     text,
		Metadata: md,
		Sections: SplitSections(text, PDFSectionWindow),
	}, nil
}

// pdfInfo is what the document information dictionary tells us.
type pdfInfo struct {
	title   string
	authors []string
}

// extractPDF returns the plain text of every page. The parser panics on
// some malformed inputs, so panics are converted to errors.
func extractPDF(data []byte) (text string, info pdfInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", pdfInfo{}, err
	}

	infoDict := r.Trailer().Key("Info")
	info.title = strings.TrimSpace(infoDict.Key("Title").Text())
	info.authors = splitAuthorField(infoDict.Key("Author").Text())

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, perr := page.GetPlainText(nil)
		if perr != nil {
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return b.String(), info, nil
}

// isEncryptionError reports whether a parse failure came from encryption,
// judged by the parser's message or an /Encrypt entry in the trailer.
func isEncryptionError(err error, data []byte) bool {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "encrypt") || strings.Contains(msg, "password") {
		return true
	}
	return bytes.Contains(data, []byte("/Encrypt"))
}

var authorSplitRe = regexp.MustCompile(`\s*(?:;|,|\band\b|&)\s*`)

// splitAuthorField splits a PDF Author entry like "A. Smith; B. Jones".
func splitAuthorField(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range authorSplitRe.Split(s, -1) {
		if part = strings.TrimSpace(part); len(part) > 1 {
			out = append(out, part)
		}
	}
	return out
}

// guessTitle returns the first substantial line of the first page that
// does not look like a running header.
func guessTitle(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > 40 {
		lines = lines[:40]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) > 20 && len(line) < 300 && !isHeaderLine(line) {
			return line
		}
	}
	return ""
}

func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "journal"),
		strings.Contains(lower, "copyright"),
		strings.Contains(lower, "doi"),
		strings.Contains(lower, "http"),
		strings.Contains(lower, "volume") && strings.Contains(lower, "issue"),
		strings.Contains(lower, "article") && strings.Contains(lower, "published"):
		return true
	}
	return false
}
