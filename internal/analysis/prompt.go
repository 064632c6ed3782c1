// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/trust-engine/pkg/types"
)

// maxPromptContent is the total character budget for study content in the
// user prompt.
const maxPromptContent = 20000

// minSectionCoverage is the share of the text the found body sections must
// cover before the prompt is sent as sections instead of the full text.
const minSectionCoverage = 0.5

// sectionCap bounds one named section before the total budget is applied.
type sectionCap struct {
	name  string
	limit int
	get   func(*types.Sections) string
}

var sectionCaps = []sectionCap{
	{"Abstract", 2000, func(s *types.Sections) string { return s.Abstract }},
	{"Introduction", 2500, func(s *types.Sections) string { return s.Introduction }},
	{"Methods", 6000, func(s *types.Sections) string { return s.Methods }},
	{"Results", 5000, func(s *types.Sections) string { return s.Results }},
	{"Discussion", 3000, func(s *types.Sections) string { return s.Discussion }},
	{"Conclusions", 1500, func(s *types.Sections) string { return s.Conclusions }},
	{"References", 2000, func(s *types.Sections) string { return s.References }},
}

// promptSection is one delimited block of study content.
type promptSection struct {
	Name string
	Body string
}

type promptData struct {
	Metadata        types.StudyMetadata
	Hints           *types.SourceHints
	SourceURL       string
	CitationQuality *types.CitationQuality
	Sections        []promptSection
	Text            string
}

var userPromptTmpl = template.Must(template.New("study").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`Evaluate the following scientific study.

Study metadata:
{{- with .Metadata}}
{{- if .Title}}
- Title: {{.Title}}{{end}}
{{- if .Authors}}
- Authors: {{join .Authors ", "}}{{end}}
{{- if .Affiliations}}
- Affiliations: {{join .Affiliations "; "}}{{end}}
{{- if .Journal}}
- Journal: {{.Journal}}{{end}}
{{- if .PublicationDate}}
- Published: {{.PublicationDate}}{{end}}
{{- if .DOI}}
- DOI: {{.DOI}}{{end}}
{{- if .StudyType}}
- Study type (heuristic): {{.StudyType}}{{end}}
{{- if .SampleSize}}
- Sample size (heuristic): {{.SampleSize}}{{end}}
{{- if .FundingSources}}
- Funding: {{join .FundingSources "; "}}{{end}}
{{- end}}
{{- if .SourceURL}}
- Source: {{.SourceURL}}{{end}}
{{- with .Hints}}

Source context:
{{- if .StudyName}}
- Name from URL: {{.StudyName}}{{end}}
{{- if .Keywords}}
- Keywords: {{join .Keywords ", "}}{{end}}
{{- end}}
{{- with .CitationQuality}}

Citation check: quality {{.Quality}}, score {{printf "%.0f" .Score}}
{{- range .Issues}}
- {{.}}{{end}}
{{- end}}

Study content:
{{- if .Sections}}
{{- range .Sections}}

=== {{.Name}} ===
{{.Body}}
{{- end}}
{{- else}}

{{.Text}}
{{- end}}
`))

// BuildPrompt renders the user prompt shared by both phases. Sectioned
// content is capped per section and then shrunk proportionally to fit the
// total budget. Text whose sections were only partly found is sent whole,
// keeping its head and tail.
func BuildPrompt(content *types.ExtractedContent, md types.StudyMetadata) (string, error) {
	data := promptData{
		Metadata:        md,
		Hints:           content.Hints,
		SourceURL:       content.SourceURL,
		CitationQuality: md.CitationQuality,
	}
	if data.Hints != nil && data.Hints.StudyName == "" && len(data.Hints.Keywords) == 0 {
		data.Hints = nil
	}

	if sectionsCoverText(content) {
		data.Sections = fitSections(content.Sections, maxPromptContent)
	}
	if len(data.Sections) == 0 {
		data.Text = headTail(content.Text, maxPromptContent)
	}

	var buf bytes.Buffer
	if err := userPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sectionsCoverText reports whether the found sections carry enough of the
// study to stand in for its text. References never count as body.
func sectionsCoverText(content *types.ExtractedContent) bool {
	s := content.Sections
	if s == nil {
		return false
	}
	body := 0
	for _, c := range sectionCaps {
		if c.name == "References" {
			continue
		}
		body += len([]rune(strings.TrimSpace(c.get(s))))
	}
	if body == 0 {
		return false
	}
	text := len([]rune(strings.TrimSpace(content.Text)))
	return float64(body) >= float64(text)*minSectionCoverage
}

// fitSections applies the per-section caps, then scales every section by
// the same ratio when the capped total exceeds budget.
func fitSections(s *types.Sections, budget int) []promptSection {
	var out []promptSection
	total := 0
	for _, c := range sectionCaps {
		body := strings.TrimSpace(c.get(s))
		if body == "" {
			continue
		}
		body = truncateRunes(body, c.limit)
		total += len([]rune(body))
		out = append(out, promptSection{Name: c.name, Body: body})
	}

	if total <= budget {
		return out
	}
	ratio := float64(budget) / float64(total)
	for i := range out {
		n := int(float64(len([]rune(out[i].Body))) * ratio)
		out[i].Body = truncateRunes(out[i].Body, n)
	}
	return out
}

// headTail keeps the first three quarters and last quarter of the budget
// when text is too long, so conclusions at the end survive.
func headTail(text string, budget int) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) <= budget {
		return string(r)
	}
	head := budget * 3 / 4
	tail := budget - head
	return string(r[:head]) + "\n[...]\n" + string(r[len(r)-tail:])
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

const rubric = `Score each category you are asked for on its own scale:
- methodology: 0-25 (design, controls, randomization, blinding)
- evidenceStrength: 0-20 (effect sizes, consistency, position in the evidence hierarchy)
- bias: 0-20 (higher means less bias: funding, conflicts of interest, selective reporting)
- reproducibility: 0-15 (data and code availability, protocol detail, preregistration)
- statisticalValidity: 0-20 (appropriate tests, power, multiple comparisons, confidence intervals)

Each category object has the form:
{"score": number, "maxScore": number, "explanation": string, "issues": [string], "strengths": [string]}

Severities are "high", "medium", or "low".
Respond with a single JSON object and nothing else.`

const phase1System = `You are an expert reviewer of scientific methodology. Assess methodology, statistics, reproducibility, the evidence hierarchy, logical fallacies, and confounders. Do not score bias.

` + rubric + `

Return this JSON shape:
{
  "breakdown": {
    "methodology": {...},
    "evidenceStrength": {...},
    "reproducibility": {...},
    "statisticalValidity": {...}
  },
  "flawDetection": {
    "fallacies": [{"type": string, "description": string, "location": string, "severity": string}],
    "confounders": [{"factor": string, "description": string, "impact": string}],
    "validityThreats": [{"type": string, "description": string, "severity": string}],
    "otherConfoundingFactors": [string],
    "issues": [string]
  },
  "evidenceHierarchy": {"level": string, "position": 1-6, "qualityWithinLevel": string, "justification": string},
  "simpleSummary": string,
  "technicalCritique": string,
  "recommendations": [string],
  "keyTakeaways": [string],
  "studyLimitations": [string]
}

Evidence hierarchy positions: 1 systematic review or meta-analysis, 2 randomized controlled trial, 3 cohort study, 4 case-control study, 5 cross-sectional study or case series, 6 expert opinion, in vitro, or animal study.`

const phase2System = `You are an expert in research integrity. Assess bias, funding conflicts, author and journal credibility, how the study sits within expert consensus, and whether its causal claims are supported. Do not score methodology, evidence strength, reproducibility, or statistics.

` + rubric + `

Return this JSON shape:
{
  "breakdown": {
    "bias": {...}
  },
  "flawDetection": {
    "issues": [string]
  },
  "expertContext": {
    "consensus": string,
    "replicationInfo": string,
    "controversies": [string],
    "recentUpdates": [string],
    "relatedStudies": [string]
  },
  "credibility": {
    "fundingConflicts": [string],
    "conflictsOfInterest": string,
    "authorExpertise": string,
    "journalReputation": string
  },
  "causalInference": {
    "canEstablishCausality": boolean,
    "reasoning": string,
    "criteriaMet": [string],
    "criteriaMissing": [string]
  },
  "biasReport": string,
  "recommendations": [string],
  "keyTakeaways": [string],
  "studyLimitations": [string]
}`

func systemPrompt(p Phase) string {
	switch p {
	case PhaseMethodology:
		return phase1System
	case PhaseContext:
		return phase2System
	}
	panic(fmt.Sprintf("unknown phase %d", int(p)))
}
