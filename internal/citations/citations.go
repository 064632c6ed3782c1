// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citations finds in-text citations, checks each against the
// document's references section, and grades overall citation quality.
package citations

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/trust-engine/pkg/types"
)

// contextWindow is the number of characters kept on each side of a
// citation's first occurrence.
const contextWindow = 100

// Issue strings attached to unverified citations.
const (
	IssueNotInReferences   = "not found in references section"
	IssueUnrecognizedShape = "unrecognized citation format"
)

// Quality issue notes.
const (
	NoteNoCitations  = "No citations found"
	NoteNoReferences = "No references section found"
)

// Citation shape patterns, applied in this order.
var (
	// parentheticalRe matches (Smith, 2020), (Smith and Jones, 2019),
	// (Smith et al., 2021a).
	parentheticalRe = regexp.MustCompile(`\([A-Z][A-Za-z'\-]+(?:\s+(?:and|&)\s+[A-Z][A-Za-z'\-]+)?(?:\s+et\s+al\.?)?,\s*(?:19|20)\d{2}[a-z]?\)`)

	// numericRe matches [1], [2-4], [1, 5, 7].
	numericRe = regexp.MustCompile(`\[\d+(?:\s*[-–,]\s*\d+)*\]`)

	// etAlRe matches Smith et al. (2020).
	etAlRe = regexp.MustCompile(`\b[A-Z][A-Za-z'\-]+\s+et\s+al\.?\s*\((?:19|20)\d{2}[a-z]?\)`)

	// narrativeRe matches Smith (2020).
	narrativeRe = regexp.MustCompile(`\b[A-Z][A-Za-z'\-]+\s+\((?:19|20)\d{2}[a-z]?\)`)

	citationPatterns = []*regexp.Regexp{parentheticalRe, numericRe, etAlRe, narrativeRe}

	// looseShapeRe accepts anything that still looks like a citation
	// after extraction: a bracketed number list or a name with a year.
	looseShapeRe = regexp.MustCompile(`^(?:\[\d[\d\s,\-–]*\]|\(?[A-Z][A-Za-z'\-]+.*\b(?:19|20)\d{2}[a-z]?\)?)$`)

	numberRe  = regexp.MustCompile(`\d+`)
	yearRe    = regexp.MustCompile(`(?:19|20)\d{2}`)
	surnameRe = regexp.MustCompile(`[A-Z][A-Za-z'\-]+`)
)

// ExtractCitations returns every distinct citation string in the text,
// in pattern order and then order of appearance.
func ExtractCitations(content *types.ExtractedContent) []string {
	seen := make(map[string]bool)
	var out []string
	for _, re := range citationPatterns {
		for _, m := range re.FindAllString(content.Text, -1) {
			if seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// references returns the extracted references section, or "" when the
// document has none.
func references(content *types.ExtractedContent) string {
	if content.Sections == nil {
		return ""
	}
	return content.Sections.References
}

// VerifyCitations checks each citation against the references section
// (when one was extracted) and the loose citation shape. Every failed
// check adds a named issue.
func VerifyCitations(cites []string, content *types.ExtractedContent) types.CitationVerification {
	refs := references(content)
	lowerRefs := strings.ToLower(refs)

	result := types.CitationVerification{
		Citations:      make([]types.Citation, 0, len(cites)),
		TotalCitations: len(cites),
	}
	for _, c := range cites {
		cite := types.Citation{
			Text:    c,
			Context: contextAround(content.Text, c),
		}
		if refs != "" && !inReferences(c, refs, lowerRefs) {
			cite.Issues = append(cite.Issues, IssueNotInReferences)
		}
		if !looseShapeRe.MatchString(c) {
			cite.Issues = append(cite.Issues, IssueUnrecognizedShape)
		}
		cite.Verified = len(cite.Issues) == 0
		if cite.Verified {
			result.VerifiedCount++
		}
		result.IssuesFound += len(cite.Issues)
		result.Citations = append(result.Citations, cite)
	}
	return result
}

// inReferences reports whether a citation appears in the references
// section: verbatim, case-insensitively, or by its key. A numeric
// citation's key is each cited number as "[n]" or a leading "n."; an
// author-year citation's key is its first surname together with its year.
func inReferences(cite, refs, lowerRefs string) bool {
	if strings.Contains(lowerRefs, strings.ToLower(cite)) {
		return true
	}

	if strings.HasPrefix(cite, "[") {
		nums := expandNumbers(cite)
		if len(nums) == 0 {
			return false
		}
		for _, n := range nums {
			s := strconv.Itoa(n)
			if !strings.Contains(refs, "["+s+"]") && !hasNumberedEntry(refs, s) {
				return false
			}
		}
		return true
	}

	surname := surnameRe.FindString(strings.TrimPrefix(cite, "("))
	year := yearRe.FindString(cite)
	if surname == "" || year == "" {
		return false
	}
	return strings.Contains(lowerRefs, strings.ToLower(surname)) && strings.Contains(refs, year)
}

// hasNumberedEntry reports whether a line of refs starts with "n.".
func hasNumberedEntry(refs, n string) bool {
	for _, line := range strings.Split(refs, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), n+".") {
			return true
		}
	}
	return false
}

// maxRangeExpansion bounds how many numbers a range like [1-400] expands to.
const maxRangeExpansion = 50

// expandNumbers turns "[1-3, 7]" into 1, 2, 3, 7.
func expandNumbers(cite string) []int {
	var out []int
	for _, part := range strings.Split(strings.Trim(cite, "[]"), ",") {
		bounds := numberRe.FindAllString(part, -1)
		switch len(bounds) {
		case 1:
			n, _ := strconv.Atoi(bounds[0])
			out = append(out, n)
		case 2:
			lo, _ := strconv.Atoi(bounds[0])
			hi, _ := strconv.Atoi(bounds[1])
			if hi < lo || hi-lo > maxRangeExpansion {
				return nil
			}
			for n := lo; n <= hi; n++ {
				out = append(out, n)
			}
		}
	}
	return out
}

// contextAround returns up to contextWindow characters on each side of
// the first occurrence of cite in text.
func contextAround(text, cite string) string {
	idx := strings.Index(text, cite)
	if idx < 0 {
		return ""
	}
	start := idx - contextWindow
	if start < 0 {
		start = 0
	}
	end := idx + len(cite) + contextWindow
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return strings.TrimSpace(text[start:end])
}

// AnalyzeQuality grades a verification result. Zero citations is always
// low with score 0. Otherwise the verification rate and issues per
// citation select high (90), medium (70), or a low score floored at 30;
// a document without a references section then loses 20 points.
func AnalyzeQuality(v types.CitationVerification, content *types.ExtractedContent) types.CitationQuality {
	if v.TotalCitations == 0 {
		return types.CitationQuality{
			Quality: types.CitationQualityLow,
			Score:   0,
			Issues:  []string{NoteNoCitations},
		}
	}

	total := float64(v.TotalCitations)
	rate := float64(v.VerifiedCount) / total
	issuesPer := float64(v.IssuesFound) / total

	var q types.CitationQuality
	switch {
	case rate >= 0.9 && issuesPer < 0.1:
		q.Quality, q.Score = types.CitationQualityHigh, 90
	case rate >= 0.7 && issuesPer < 0.3:
		q.Quality, q.Score = types.CitationQualityMedium, 70
	default:
		q.Quality = types.CitationQualityLow
		q.Score = math.Max(30, rate*100-issuesPer*20)
	}

	if unverified := v.TotalCitations - v.VerifiedCount; unverified > 0 {
		q.Issues = append(q.Issues, strconv.Itoa(unverified)+" of "+strconv.Itoa(v.TotalCitations)+" citations could not be verified")
	}
	if references(content) == "" {
		q.Score = math.Max(0, q.Score-20)
		q.Issues = append(q.Issues, NoteNoReferences)
	}
	return q
}
