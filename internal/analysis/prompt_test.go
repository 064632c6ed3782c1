// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trust-engine/pkg/types"
)

func TestBuildPrompt_MetadataAndContext(t *testing.T) {
	content := &types.ExtractedContent{
		Text:      "Body text of the study.",
		SourceURL: "https://example.org/coffee-trial",
		Hints:     &types.SourceHints{StudyName: "coffee trial", Keywords: []string{"coffee", "trial"}},
	}
	md := types.StudyMetadata{
		Title:      "Coffee and Alertness",
		Authors:    []string{"Jane Smith", "Wei Chen"},
		Journal:    "Sleep Medicine",
		SampleSize: 120,
		StudyType:  types.StudyRCT,
		CitationQuality: &types.CitationQuality{
			Quality: types.CitationQualityLow,
			Score:   30,
			Issues:  []string{"No references section found"},
		},
	}

	prompt, err := BuildPrompt(content, md)
	require.NoError(t, err)

	for _, want := range []string{
		"- Title: Coffee and Alertness",
		"- Authors: Jane Smith, Wei Chen",
		"- Journal: Sleep Medicine",
		"- Sample size (heuristic): 120",
		"- Study type (heuristic): randomized controlled trial",
		"- Source: https://example.org/coffee-trial",
		"- Name from URL: coffee trial",
		"- Keywords: coffee, trial",
		"Citation check: quality low, score 30",
		"- No references section found",
		"Body text of the study.",
	} {
		assert.Contains(t, prompt, want)
	}
	assert.NotContains(t, prompt, "- DOI:")
}

func TestBuildPrompt_SectionsDelimited(t *testing.T) {
	content := &types.ExtractedContent{
		Text:     "full text that should not appear",
		Sections: &types.Sections{Abstract: "the abstract", Methods: "the methods"},
	}
	prompt, err := BuildPrompt(content, types.StudyMetadata{})
	require.NoError(t, err)

	assert.Contains(t, prompt, "=== Abstract ===\nthe abstract")
	assert.Contains(t, prompt, "=== Methods ===\nthe methods")
	assert.NotContains(t, prompt, "=== Results ===")
	assert.NotContains(t, prompt, "full text that should not appear")
	assert.Less(t, strings.Index(prompt, "=== Abstract"), strings.Index(prompt, "=== Methods"))
}

func TestBuildPrompt_PartialSectionsSendText(t *testing.T) {
	body := "Methods: 240 adults were randomized to coffee or placebo. " + strings.Repeat("Outcome measured at baseline and week 12. ", 100)

	tests := []struct {
		name     string
		sections *types.Sections
	}{
		{"references only", &types.Sections{References: "1. Smith J. Caffeine and sleep. 2019."}},
		{"abstract covers little", &types.Sections{Abstract: "Coffee improves alertness."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := &types.ExtractedContent{Text: body, Sections: tt.sections}
			prompt, err := BuildPrompt(content, types.StudyMetadata{})
			require.NoError(t, err)

			assert.Contains(t, prompt, "240 adults were randomized")
			assert.Contains(t, prompt, "Outcome measured at baseline and week 12.")
			assert.NotContains(t, prompt, "=== References ===")
			assert.NotContains(t, prompt, "=== Abstract ===")
		})
	}
}

func TestBuildPrompt_LongPartialTextStaysInBudget(t *testing.T) {
	content := &types.ExtractedContent{
		Text:     strings.Repeat("x", 30000) + "THE END",
		Sections: &types.Sections{References: "1. Smith J. 2019."},
	}
	prompt, err := BuildPrompt(content, types.StudyMetadata{})
	require.NoError(t, err)

	assert.Contains(t, prompt, "\n[...]\n")
	assert.Contains(t, prompt, "THE END")
	assert.Less(t, len(prompt), 30000)
}

func TestFitSections_CapsEachSection(t *testing.T) {
	s := &types.Sections{Abstract: strings.Repeat("a", 5000), Methods: strings.Repeat("m", 100)}
	out := fitSections(s, maxPromptContent)
	require.Len(t, out, 2)
	assert.Len(t, out[0].Body, 2000)
	assert.Len(t, out[1].Body, 100)
}

func TestFitSections_ShrinksProportionally(t *testing.T) {
	s := &types.Sections{
		Abstract:     strings.Repeat("a", 2000),
		Introduction: strings.Repeat("i", 2500),
		Methods:      strings.Repeat("m", 6000),
		Results:      strings.Repeat("r", 5000),
		Discussion:   strings.Repeat("d", 3000),
		Conclusions:  strings.Repeat("c", 1500),
		References:   strings.Repeat("f", 2000),
	}
	out := fitSections(s, maxPromptContent)
	require.Len(t, out, 7)

	total := 0
	for _, sec := range out {
		total += len(sec.Body)
	}
	assert.LessOrEqual(t, total, maxPromptContent)
	assert.Greater(t, total, maxPromptContent-10)

	// 20000/22000 of each capped section.
	assert.Len(t, out[0].Body, 1818)
	assert.Len(t, out[2].Body, 5454)
}

func TestHeadTail(t *testing.T) {
	assert.Equal(t, "short", headTail("  short  ", 100))

	text := strings.Repeat("h", 90) + strings.Repeat("t", 30)
	got := headTail(text, 40)
	assert.True(t, strings.HasPrefix(got, strings.Repeat("h", 30)+"\n[...]\n"))
	assert.True(t, strings.HasSuffix(got, strings.Repeat("t", 10)))
}

func TestSystemPrompts(t *testing.T) {
	assert.Contains(t, systemPrompt(PhaseMethodology), `"methodology"`)
	assert.NotContains(t, systemPrompt(PhaseMethodology), `"bias": {...}`)
	assert.Contains(t, systemPrompt(PhaseContext), `"bias": {...}`)
	assert.Contains(t, systemPrompt(PhaseContext), "expertContext")
	assert.Panics(t, func() { systemPrompt(Phase(3)) })
}
