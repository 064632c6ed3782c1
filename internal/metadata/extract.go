// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metadata mines bibliographic fields from study text and
// cross-checks them against that text.
//
// Each heuristic is a pure function from text to an optional field so
// it can be tested without network or provider dependencies. Extract
// runs them over a normalized document and Validate repairs or clears
// what the text does not support.
package metadata

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/trust-engine/internal/doi"
	"github.com/pdiddy/trust-engine/pkg/types"
)

// Limits on list-valued fields and scan windows.
const (
	authorScanLines = 30
	maxAuthors      = 50
	maxAffiliations = 10
	maxFunding      = 10
	maxSampleSize   = 100_000_000
	minYear         = 1900
)

// now is the clock used for the publication year upper bound.
var now = time.Now

// Extract fills the fields an adapter left unknown with values mined from
// the document text. Adapter-supplied values are kept as they are.
func Extract(content *types.ExtractedContent) types.StudyMetadata {
	md := content.Metadata
	text := content.Text

	if md.Title == "" {
		md.Title = ExtractTitle(text)
	}
	if len(md.Authors) == 0 {
		md.Authors = ExtractAuthors(text)
	}
	if len(md.Affiliations) == 0 {
		md.Affiliations = ExtractAffiliations(text)
	}
	if len(md.FundingSources) == 0 {
		md.FundingSources = ExtractFunding(text)
	}
	if md.Journal == "" {
		md.Journal = ExtractJournal(text)
	}
	if md.PublicationDate == "" {
		md.PublicationDate = ExtractPublicationDate(text)
	}
	if md.DOI == "" {
		md.DOI = doi.Find(text)
	}
	if md.StudyType == "" {
		md.StudyType = ClassifyStudyType(text)
	}
	if md.SampleSize == 0 {
		md.SampleSize = ExtractSampleSize(text)
	}
	return md
}

// --- title ---

var titleAnchorRe = regexp.MustCompile(`(?im)^[ \t]*(?:title|study|paper)[ \t]*:[ \t]*(\S[^\n]{4,298})$`)

// ExtractTitle returns the value of a "Title:", "Study:", or "Paper:" line.
func ExtractTitle(text string) string {
	if m := titleAnchorRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// --- authors ---

var (
	authorMarkerRe = regexp.MustCompile(`[\d*†‡§¶#]+`)
	authorPrefixRe = regexp.MustCompile(`(?i)^(?:by|authors?)[ \t]*:?[ \t]+`)
	authorSplitRe  = regexp.MustCompile(`\s*(?:,|;|\band\b|&)\s*`)
	personNameRe   = regexp.MustCompile(`^(?:(?:[A-Z]\.[ \t]*|[A-Z][a-z'’\-]+[ \t]+)){1,3}[A-Z][a-zA-Z'’\-]+$`)
)

// ExtractAuthors looks in the first lines of text for a byline: either a
// line prefixed with "By" or "Authors:", or a line made entirely of two or
// more personal names separated by commas or "and".
func ExtractAuthors(text string) []string {
	lines := strings.SplitN(text, "\n", authorScanLines+1)
	if len(lines) > authorScanLines {
		lines = lines[:authorScanLines]
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > 300 || affiliationKeywordRe.MatchString(line) {
			continue
		}

		prefixed := authorPrefixRe.MatchString(line)
		line = authorPrefixRe.ReplaceAllString(line, "")
		line = authorMarkerRe.ReplaceAllString(line, "")

		var names []string
		ok := true
		for _, part := range authorSplitRe.Split(line, -1) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if !personNameRe.MatchString(part) {
				ok = false
				break
			}
			names = append(names, part)
		}
		if !ok || len(names) == 0 || (!prefixed && len(names) < 2) {
			continue
		}
		if len(names) > maxAuthors {
			names = names[:maxAuthors]
		}
		return names
	}
	return nil
}

// --- affiliations ---

var (
	affiliationKeywordRe = regexp.MustCompile(`\b(?:University|Universit[éàä]t?|Institute|Institut|College|School of|Department of|Dept\. of|Faculty of|Hospital|Medical Center|Medical Centre|Research Center|Research Centre|Laboratory|Clinic|Academy of)\b`)
	leadingMarkerRe      = regexp.MustCompile(`^[\d*†‡§¶#,\s]+`)
)

// ExtractAffiliations returns short lines anchored on an institution
// keyword, deduplicated and capped.
func ExtractAffiliations(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		if len(out) >= maxAffiliations {
			break
		}
		line = strings.TrimSpace(line)
		if len(line) < 10 || len(line) > 250 || !affiliationKeywordRe.MatchString(line) {
			continue
		}
		if fundingVerbRe.MatchString(line) {
			continue
		}
		line = strings.TrimSpace(leadingMarkerRe.ReplaceAllString(line, ""))
		key := strings.ToLower(line)
		if line == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, line)
	}
	return out
}

// --- funding ---

var (
	fundingVerbRe = regexp.MustCompile(`(?i)\b(?:funded|supported|sponsored|financed)\s+(?:in part\s+)?by\b`)

	// fundingPatterns capture the funder phrase. The heading form spans a
	// line break so "Funding\nThe Wellcome Trust" is caught.
	fundingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:funded|supported|sponsored|financed)\s+(?:in part\s+)?by\s+(?:an?\s+)?(?:(?:research\s+)?grants?\s+from\s+)?(?:the\s+)?([^.;\n]{3,150})`),
		regexp.MustCompile(`(?i)\b(?:grants?|funding|financial support)\s+from\s+(?:the\s+)?([^.;\n]{3,150})`),
		regexp.MustCompile(`(?im)^[ \t]*(?:funding(?:[ \t]+(?:sources?|information|statement))?|financial[ \t]+support|role of the funding source)[ \t]*[:.]?[ \t]*\n?[ \t]*([^\n]{3,200})`),
	}

	agencyRe = regexp.MustCompile(`\b(National Institutes? of Health|NIH|National Science Foundation|NSF|Wellcome Trust|Bill (?:&|and) Melinda Gates Foundation|Gates Foundation|European Research Council|Medical Research Council|Howard Hughes Medical Institute|National Institute for Health Research|NIHR|Canadian Institutes of Health Research|Deutsche Forschungsgemeinschaft|Australian Research Council|National Natural Science Foundation of China|World Health Organization|Department of Defense|Department of Energy)\b`)
)

// ExtractFunding returns funder phrases and named agencies, deduplicated
// case-insensitively and capped.
func ExtractFunding(text string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.Join(strings.Fields(s), " ")
		s = strings.TrimRight(s, " ,:;.")
		key := strings.ToLower(s)
		if len(s) < 3 || seen[key] || len(out) >= maxFunding {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	for _, re := range fundingPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
	}
	for _, m := range agencyRe.FindAllString(text, -1) {
		add(m)
	}
	return out
}

// --- journal ---

var journalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^[ \t]*journal[ \t]*:[ \t]*([^\n]{3,150})$`),
	regexp.MustCompile(`\b((?:The\s+)?(?:Journal|Annals|Archives|Proceedings|Bulletin|Transactions)\s+of\s+(?:the\s+)?[A-Z][A-Za-z\-']*(?:[ \t]+(?:of[ \t]+|and[ \t]+|&[ \t]+|the[ \t]+)?[A-Z][A-Za-z\-']*)*)`),
	regexp.MustCompile(`\b(The Lancet(?:\s+[A-Z][a-z]+)?|New England Journal of Medicine|JAMA(?:\s+[A-Z][a-z]+)?|BMJ(?:\s+Open)?|PLo[Ss] (?:ONE|One|Medicine|Biology)|Nature (?:Medicine|Communications|Genetics|Neuroscience)|Science Advances)\b`),
	regexp.MustCompile(`(?i)\bpublished\s+in\s+(?:the\s+)?([A-Z][A-Za-z&\-' ]{2,100}?)(?:[,.;(\n]|\s+\d|$)`),
}

// ExtractJournal returns the first journal name found by a
// journal-keyword pattern.
func ExtractJournal(text string) string {
	for _, re := range journalPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// --- publication date ---

var (
	isoDateRe = regexp.MustCompile(`\b((?:19|20)\d{2})-(0[1-9]|1[0-2])(?:-(0[1-9]|[12]\d|3[01]))?\b`)

	monthPattern    = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`
	monthFirstRe    = regexp.MustCompile(`(?i)\b` + monthPattern + `\.?[ \t]+(?:(\d{1,2})(?:st|nd|rd|th)?,?[ \t]+)?((?:19|20)\d{2})\b`)
	dayFirstRe      = regexp.MustCompile(`(?i)\b(\d{1,2})[ \t]+` + monthPattern + `\.?[ \t]+((?:19|20)\d{2})\b`)
	anchoredYearRe  = regexp.MustCompile(`(?i)(?:published|publication|date|accepted|received|copyright|©)[^\n\d]{0,30}((?:19|20)\d{2})\b`)
	bareYearRe      = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	bareYearScanLen = 3000
)

// ExtractPublicationDate prefers an ISO date, then a spelled-month date,
// then a year near a "published"/"date" anchor, then a bare year early in
// the text. The result is YYYY, YYYY-MM, or YYYY-MM-DD.
func ExtractPublicationDate(text string) string {
	for _, m := range isoDateRe.FindAllStringSubmatch(text, -1) {
		if !yearInRange(m[1]) {
			continue
		}
		if m[3] != "" {
			return m[1] + "-" + m[2] + "-" + m[3]
		}
		return m[1] + "-" + m[2]
	}

	if m := dayFirstRe.FindStringSubmatch(text); m != nil && yearInRange(m[3]) {
		return formatDate(m[3], monthNumber(m[2]), m[1])
	}
	if m := monthFirstRe.FindStringSubmatch(text); m != nil && yearInRange(m[3]) {
		return formatDate(m[3], monthNumber(m[1]), m[2])
	}

	if y := AnchoredYear(text); y != "" {
		return y
	}

	front := text
	if len(front) > bareYearScanLen {
		front = front[:bareYearScanLen]
	}
	for _, m := range bareYearRe.FindAllStringSubmatch(front, -1) {
		if yearInRange(m[1]) {
			return m[1]
		}
	}
	return ""
}

// AnchoredYear returns a plausible year that follows a "published",
// "publication", or "date" style anchor.
func AnchoredYear(text string) string {
	for _, m := range anchoredYearRe.FindAllStringSubmatch(text, -1) {
		if yearInRange(m[1]) {
			return m[1]
		}
	}
	return ""
}

func yearInRange(s string) bool {
	y, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return y >= minYear && y <= now().Year()+1
}

func monthNumber(s string) int {
	switch strings.ToLower(s)[:3] {
	case "jan":
		return 1
	case "feb":
		return 2
	case "mar":
		return 3
	case "apr":
		return 4
	case "may":
		return 5
	case "jun":
		return 6
	case "jul":
		return 7
	case "aug":
		return 8
	case "sep":
		return 9
	case "oct":
		return 10
	case "nov":
		return 11
	case "dec":
		return 12
	}
	return 0
}

func formatDate(year string, month int, day string) string {
	if month == 0 {
		return year
	}
	out := year + "-" + twoDigits(month)
	if d, err := strconv.Atoi(day); err == nil && d >= 1 && d <= 31 {
		out += "-" + twoDigits(d)
	}
	return out
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// --- study type ---

// studyCategory maps a study design to the phrases that signal it.
type studyCategory struct {
	typ      types.StudyType
	keywords []string
}

// studyCategories are checked in order; the first category with a keyword
// present in the text wins.
var studyCategories = []studyCategory{
	{types.StudyMetaAnalysis, []string{"meta-analysis", "meta analysis", "metaanalysis", "systematic review", "pooled analysis"}},
	{types.StudyRCT, []string{"randomized controlled trial", "randomised controlled trial", "randomized clinical trial", "randomised clinical trial", "randomly assigned", "randomly allocated", "randomized", "randomised", "placebo-controlled", "double-blind"}},
	{types.StudyCohort, []string{"cohort study", "prospective cohort", "retrospective cohort", "longitudinal study", "cohort"}},
	{types.StudyCaseControl, []string{"case-control", "case control", "matched controls"}},
	{types.StudyCrossSectional, []string{"cross-sectional", "cross sectional", "prevalence survey", "survey"}},
	{types.StudyObservational, []string{"observational", "population-based", "registry", "real-world data"}},
	{types.StudyInVitro, []string{"in vitro", "cell culture", "cell line", "cultured cells"}},
	{types.StudyAnimal, []string{"animal model", "mouse model", "mice", "rats", "rodent", "in vivo"}},
}

var keywordRes = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp)
	for _, c := range studyCategories {
		for _, kw := range c.keywords {
			m[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
		}
	}
	return m
}()

// ClassifyStudyType maps keyword evidence in text to one of the eight
// study designs, or "" when nothing matches.
func ClassifyStudyType(text string) types.StudyType {
	lower := strings.ToLower(text)
	for _, c := range studyCategories {
		if c.matches(lower) {
			return c.typ
		}
	}
	return ""
}

func (c studyCategory) matches(lowerText string) bool {
	for _, kw := range c.keywords {
		if keywordRes[kw].MatchString(lowerText) {
			return true
		}
	}
	return false
}

// --- sample size ---

// sampleSizePatterns are tried in order; the first in-range match wins.
var sampleSizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[Nn][ \t]*=[ \t]*(\d[\d,]*)`),
	regexp.MustCompile(`(?i)\bsample size(?:[ \t]+(?:of|was|is|was set at))?[ \t]*:?[ \t]*(\d[\d,]*)`),
	regexp.MustCompile(`(?i)\b(\d[\d,]*)[ \t]+(?:participants|patients|subjects|individuals|adults|children|volunteers|respondents|women|men)\b`),
	regexp.MustCompile(`(?i)\b(?:total of|enrolled|recruited|included)[ \t]+(\d[\d,]*)\b`),
}

// ExtractSampleSize returns the first plausible sample size in text, or 0.
func ExtractSampleSize(text string) int {
	for _, re := range sampleSizePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if n := parseCount(m[1]); ValidSampleSize(n) {
			return n
		}
	}
	return 0
}

// ValidSampleSize reports whether n lies in the open interval (0, 1e8).
func ValidSampleSize(n int) bool {
	return n > 0 && n < maxSampleSize
}

func parseCount(s string) int {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0
	}
	return n
}
