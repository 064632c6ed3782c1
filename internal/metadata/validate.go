// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metadata

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/trust-engine/internal/doi"
	"github.com/pdiddy/trust-engine/pkg/types"
)

// Scan windows for the cross-check pass.
const (
	titlePrefixChars   = 50
	titleSearchChars   = 2000
	journalPrefixChars = 30
)

var storedDateRe = regexp.MustCompile(`^(\d{4})(?:-(0[1-9]|1[0-2])(?:-(0[1-9]|[12]\d|3[01]))?)?$`)

// Validate re-checks every field of md against the full text. Fields the
// text supports are kept; the rest are re-derived from text patterns or
// cleared. Each change is logged with the field name and the action taken.
func Validate(md types.StudyMetadata, text string, logger zerolog.Logger) types.StudyMetadata {
	v := validator{text: text, lower: strings.ToLower(text), logger: logger}

	md.Title = v.title(md.Title)
	md.Authors = v.authors(md.Authors)
	md.Journal = v.journal(md.Journal)
	md.DOI = v.doi(md.DOI)
	md.PublicationDate = v.date(md.PublicationDate)
	md.SampleSize = v.sampleSize(md.SampleSize)
	md.StudyType = v.studyType(md.StudyType)
	return md
}

type validator struct {
	text   string
	lower  string
	logger zerolog.Logger
}

// record logs a correction. An empty replacement is reported as cleared.
func (v validator) record(field, from, to string) {
	action := "corrected"
	if to == "" {
		action = "cleared"
	}
	v.logger.Debug().
		Str("field", field).
		Str("action", action).
		Str("from", from).
		Str("to", to).
		Msg("metadata validation")
}

func (v validator) title(title string) string {
	if title == "" {
		return ""
	}
	prefix := strings.ToLower(squash(truncateRunes(title, titlePrefixChars)))
	front := strings.ToLower(squash(truncateRunes(v.text, titleSearchChars)))
	if strings.Contains(front, prefix) {
		return title
	}
	fixed := ExtractTitle(v.text)
	v.record("title", title, fixed)
	return fixed
}

// authors keeps names whose first and last tokens both occur in the text.
// When no name verifies the list is treated as metadata-only and kept.
func (v validator) authors(authors []string) []string {
	if len(authors) == 0 {
		return authors
	}
	var kept []string
	for _, a := range authors {
		fields := strings.Fields(strings.ToLower(a))
		if len(fields) == 0 {
			continue
		}
		first := strings.Trim(fields[0], ".,")
		last := strings.Trim(fields[len(fields)-1], ".,")
		if strings.Contains(v.lower, first) && strings.Contains(v.lower, last) {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		v.logger.Debug().Str("field", "authors").Int("count", len(authors)).Msg("no author verified in text, keeping metadata-only list")
		return authors
	}
	if len(kept) < len(authors) {
		v.record("authors", strings.Join(authors, "; "), strings.Join(kept, "; "))
	}
	return kept
}

func (v validator) journal(journal string) string {
	if journal == "" {
		return ""
	}
	if strings.Contains(v.text, truncateRunes(journal, journalPrefixChars)) {
		return journal
	}
	fixed := ExtractJournal(v.text)
	v.record("journal", journal, fixed)
	return fixed
}

func (v validator) doi(id string) string {
	if id == "" || doi.Valid(id) {
		return id
	}
	fixed := doi.Find(v.text)
	v.record("doi", id, fixed)
	return fixed
}

func (v validator) date(date string) string {
	if date == "" {
		return ""
	}
	if m := storedDateRe.FindStringSubmatch(date); m != nil && yearInRange(m[1]) {
		return date
	}
	fixed := AnchoredYear(v.text)
	v.record("publication_date", date, fixed)
	return fixed
}

func (v validator) sampleSize(n int) int {
	if n == 0 || ValidSampleSize(n) {
		return n
	}
	fixed := ExtractSampleSize(v.text)
	v.record("sample_size", strconv.Itoa(n), strconv.Itoa(fixed))
	return fixed
}

// studyType accepts a type when its own category, or a category whose name
// shares a word with it, has a keyword in the text.
func (v validator) studyType(st types.StudyType) types.StudyType {
	if st == "" {
		return ""
	}
	for _, c := range studyCategories {
		if (c.typ == st || namesOverlap(c.typ, st)) && c.matches(v.lower) {
			return st
		}
	}
	fixed := ClassifyStudyType(v.text)
	v.record("study_type", string(st), string(fixed))
	return fixed
}

// genericDesignWords appear in many category names and do not make two
// designs synonyms.
var genericDesignWords = map[string]bool{"study": true, "trial": true, "controlled": true, "in": true}

func namesOverlap(a, b types.StudyType) bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(string(a))) {
		if !genericDesignWords[w] {
			words[w] = true
		}
	}
	for _, w := range strings.Fields(strings.ToLower(string(b))) {
		if words[w] {
			return true
		}
	}
	return false
}

// squash collapses whitespace runs to a single space.
func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
