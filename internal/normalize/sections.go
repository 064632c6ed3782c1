// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/trust-engine/pkg/types"
)

// Window sizes for section bodies. Web pages get longer windows than PDFs
// because PDF text carries more running headers and column noise.
const (
	URLSectionWindow        = 5000
	PDFSectionWindow        = 3000
	referencesSectionWindow = 20000
)

// sectionName identifies a named part of a study.
type sectionName int

const (
	secAbstract sectionName = iota
	secIntroduction
	secMethods
	secResults
	secDiscussion
	secConclusions
	secReferences
)

// headingPattern builds a line-anchored heading matcher: optional
// numbering ("2.", "II.", "3.1"), one of the keywords, then either a colon
// or period (run-in heading) or the end of the line. A keyword that opens
// a sentence ("Results were consistent") is not a heading.
func headingPattern(keywords string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t]*(?:(?:\d+(?:\.\d+)*|[IVX]+)\.?[ \t]+)?(?:` + keywords + `)\b[ \t]*(?:[:.]|\r?$)`)
}

var sectionHeadings = []struct {
	name sectionName
	re   *regexp.Regexp
}{
	{secAbstract, headingPattern(`abstract|summary`)},
	{secIntroduction, headingPattern(`introduction|background`)},
	{secMethods, headingPattern(`materials and methods|patients and methods|methods|methodology|study design`)},
	{secResults, headingPattern(`results|findings`)},
	{secDiscussion, headingPattern(`discussion`)},
	{secConclusions, headingPattern(`conclusions?|concluding remarks`)},
	{secReferences, headingPattern(`references|bibliography|literature cited|works cited`)},
}

// SplitSections locates keyword-anchored headings in text and returns the
// body under each, capped at window characters and cut at the next found
// heading. It returns nil when no heading is found.
func SplitSections(text string, window int) *types.Sections {
	type hit struct {
		name       sectionName
		start, end int // heading match bounds
	}

	var hits []hit
	for _, h := range sectionHeadings {
		loc := h.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		hits = append(hits, hit{name: h.name, start: loc[0], end: loc[1]})
	}
	if len(hits) == 0 {
		return nil
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	var s types.Sections
	for i, h := range hits {
		limit := window
		if h.name == secReferences {
			limit = referencesSectionWindow
		}

		bodyEnd := len(text)
		if h.name != secReferences && i+1 < len(hits) {
			bodyEnd = hits[i+1].start
		}
		if bodyEnd-h.end > limit {
			bodyEnd = h.end + limit
		}
		body := strings.TrimSpace(strings.ToValidUTF8(text[h.end:bodyEnd], ""))

		switch h.name {
		case secAbstract:
			s.Abstract = body
		case secIntroduction:
			s.Introduction = body
		case secMethods:
			s.Methods = body
		case secResults:
			s.Results = body
		case secDiscussion:
			s.Discussion = body
		case secConclusions:
			s.Conclusions = body
		case secReferences:
			s.References = body
		}
	}
	return &s
}
