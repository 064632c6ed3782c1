// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/trust-engine/pkg/types"
)

const samplePaper = `Title: Coffee Intake and Alertness in Adults
Jane Smith1, Ali R. Doe2* and Maria Lopez1
1 Department of Psychology, University of Somewhere, Springfield
2 City Hospital Research Center, Shelbyville
Published in the Journal of Caffeine Research, March 5, 2021

Abstract
In this randomized controlled trial, 240 participants (N = 240) were randomly assigned to coffee or placebo.

Funding
The Wellcome Trust and internal departmental funds.

This work was supported by the National Science Foundation.`

func TestExtract_FillsUnknownFields(t *testing.T) {
	md := Extract(&types.ExtractedContent{Text: samplePaper})

	assert.Equal(t, "Coffee Intake and Alertness in Adults", md.Title)
	assert.Equal(t, []string{"Jane Smith", "Ali R. Doe", "Maria Lopez"}, md.Authors)
	assert.Equal(t, []string{
		"Department of Psychology, University of Somewhere, Springfield",
		"City Hospital Research Center, Shelbyville",
	}, md.Affiliations)
	assert.Contains(t, md.FundingSources, "National Science Foundation")
	assert.Contains(t, md.FundingSources, "The Wellcome Trust and internal departmental funds")
	assert.Equal(t, "Journal of Caffeine Research", md.Journal)
	assert.Equal(t, "2021-03-05", md.PublicationDate)
	assert.Equal(t, types.StudyRCT, md.StudyType)
	assert.Equal(t, 240, md.SampleSize)
	assert.Empty(t, md.DOI)
}

func TestExtract_KeepsAdapterValues(t *testing.T) {
	md := Extract(&types.ExtractedContent{
		Text: samplePaper,
		Metadata: types.StudyMetadata{
			Title:   "Adapter Title",
			Journal: "Adapter Journal",
			DOI:     "10.1234/abc",
		},
	})
	assert.Equal(t, "Adapter Title", md.Title)
	assert.Equal(t, "Adapter Journal", md.Journal)
	assert.Equal(t, "10.1234/abc", md.DOI)
}

func TestExtract_EmptyText(t *testing.T) {
	md := Extract(&types.ExtractedContent{Text: "nothing to see here"})
	assert.Equal(t, types.StudyMetadata{}, md)
}

func TestExtractAuthors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"byline prefix single author", "Some Title\nBy Jane Smith\nBody", []string{"Jane Smith"}},
		{"authors label", "Authors: J. Smith; K. Lee", []string{"J. Smith", "K. Lee"}},
		{"bare line needs two names", "Jane Smith\nbody text", nil},
		{"title is not a byline", "Coffee and Alertness\nEffects of Sleep on Memory", nil},
		{"affiliation line skipped", "Harvard University, Boston Medical\nJane Smith, Tom Jones", []string{"Jane Smith", "Tom Jones"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractAuthors(tt.text))
		})
	}
}

func TestExtractAuthors_OnlyFirstLines(t *testing.T) {
	text := ""
	for i := 0; i < 40; i++ {
		text += "filler line\n"
	}
	text += "Jane Smith, Tom Jones\n"
	assert.Nil(t, ExtractAuthors(text))
}

func TestExtractFunding_CappedAndDeduplicated(t *testing.T) {
	text := "Supported by NIH. Funded by NIH. " +
		"Grants from Alpha Fund. Grants from Beta Fund. Grants from Gamma Fund. Grants from Delta Fund. " +
		"Grants from Epsilon Fund. Grants from Zeta Fund. Grants from Eta Fund. Grants from Theta Fund. " +
		"Grants from Iota Fund. Grants from Kappa Fund."
	got := ExtractFunding(text)
	assert.Len(t, got, 10)
	assert.Equal(t, "NIH", got[0])
}

func TestExtractFunding_HeadingOnOwnLine(t *testing.T) {
	got := ExtractFunding("Results\nstuff\n\nFunding:\nMedical Research Council grant MR/1234\n")
	assert.Contains(t, got, "Medical Research Council grant MR/1234")
}

func TestExtractJournal(t *testing.T) {
	tests := map[string]string{
		"Journal: Annals of Testing":                             "Annals of Testing",
		"as reported in the Journal of Applied Physiology, 2019": "Journal of Applied Physiology",
		"Originally published in The Lancet Oncology.":           "The Lancet Oncology",
		"no journal mentioned here":                              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractJournal(in), in)
	}
}

func TestExtractPublicationDate(t *testing.T) {
	orig := now
	now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { now = orig }()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"iso preferred over spelled", "Received March 3, 2019. Online 2020-06-15.", "2020-06-15"},
		{"iso month only", "Version 2018-11", "2018-11"},
		{"spelled month first", "Published: March 5, 2021", "2021-03-05"},
		{"spelled day first", "Accepted 7 Sept 2017", "2017-09-07"},
		{"month and year", "December 2015 issue", "2015-12"},
		{"anchored year", "Copyright (c) 2012 the authors", "2012"},
		{"bare year", "A study from 1998 about things", "1998"},
		{"future year rejected", "Projected for 2099", ""},
		{"nothing", "no dates at all", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPublicationDate(tt.text))
		})
	}
}

func TestClassifyStudyType(t *testing.T) {
	tests := map[string]types.StudyType{
		"A systematic review and meta-analysis of randomized trials": types.StudyMetaAnalysis,
		"Participants were randomly assigned to two arms":            types.StudyRCT,
		"A prospective cohort of nurses":                             types.StudyCohort,
		"We conducted a case-control analysis":                       types.StudyCaseControl,
		"This cross-sectional survey of adults":                      types.StudyCrossSectional,
		"An observational analysis of registry data":                 types.StudyObservational,
		"Cells were grown in vitro for 48 hours":                     types.StudyInVitro,
		"Mice were fed a high-fat diet":                              types.StudyAnimal,
		"An essay on philosophy":                                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ClassifyStudyType(in), in)
	}
}

func TestExtractSampleSize(t *testing.T) {
	tests := map[string]int{
		"a total of 1,204 patients":           1204,
		"(n = 57)":                            57,
		"The sample size was 300.":            300,
		"We enrolled 88 over two years":       88,
		"N = 0 but later 45 participants":     45,
		"N = 999999999 then 12 subjects":      12,
		"no numbers that count people here 3": 0,
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractSampleSize(in), in)
	}
}
