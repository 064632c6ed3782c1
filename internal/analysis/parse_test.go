// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trust-engine/pkg/types"
)

func TestParseAnalysis_EmptyObjectDefaults(t *testing.T) {
	a, err := ParseAnalysis("{}")
	require.NoError(t, err)

	maxima := []float64{types.MaxMethodology, types.MaxEvidenceStrength, types.MaxBias, types.MaxReproducibility, types.MaxStatisticalValidity}
	for i, c := range a.Breakdown.Categories() {
		assert.Equal(t, 0.0, c.Score)
		assert.Equal(t, maxima[i], c.MaxScore)
		assert.False(t, c.Populated)
		assert.NotNil(t, c.Issues)
		assert.NotNil(t, c.Strengths)
	}
	assert.NotNil(t, a.FlawDetection.Fallacies)
	assert.NotNil(t, a.FlawDetection.Confounders)
	assert.NotNil(t, a.FlawDetection.ValidityThreats)
	assert.NotNil(t, a.ExpertContext.Controversies)
	assert.NotNil(t, a.Recommendations)
	assert.Nil(t, a.EvidenceHierarchy)
	assert.Nil(t, a.CausalInference)
}

func TestParseAnalysis_ExtractsEmbeddedObject(t *testing.T) {
	raw := "Here is my assessment:\n```json\n{\"simpleSummary\": \"fine\", \"breakdown\": {\"bias\": {\"score\": 12}}}\n```\nLet me know."
	a, err := ParseAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, "fine", a.SimpleSummary)
	assert.Equal(t, 12.0, a.Breakdown.Bias.Score)
	assert.True(t, a.Breakdown.Bias.Populated)
}

func TestParseAnalysis_Failures(t *testing.T) {
	_, err := ParseAnalysis("no braces here")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseAnalysis("{ not: valid }")
	assert.Error(t, err)

	_, err = ParseAnalysis("null")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestParseAnalysis_PermissiveValues(t *testing.T) {
	raw := `{
		"methodology": "18/25",
		"bias": {"score": 40, "maxScore": 20, "issues": "single issue"},
		"reproducibility": {"score": -3},
		"statisticalValidity": 14,
		"flawDetection": {
			"fallacies": ["post hoc reasoning", {"type": "cherry picking", "severity": "Critical"}],
			"confounders": ["diet", {"factor": "age", "impact": "high"}],
			"validityThreats": [{"type": "attrition", "severity": "moderate"}, {"type": "x"}],
			"issues": [{"description": "object issue"}, 7]
		},
		"evidenceHierarchy": {"position": 9, "qualityWithinLevel": "LOW"},
		"causalInference": {"canEstablishCausality": true, "criteriaMet": ["temporality"]}
	}`
	a, err := ParseAnalysis(raw)
	require.NoError(t, err)

	assert.Equal(t, 18.0, a.Breakdown.Methodology.Score)
	assert.Equal(t, 20.0, a.Breakdown.Bias.Score, "clamped to maxScore")
	assert.Equal(t, []string{"single issue"}, a.Breakdown.Bias.Issues)
	assert.Equal(t, 0.0, a.Breakdown.Reproducibility.Score, "clamped to zero")
	assert.True(t, a.Breakdown.Reproducibility.Populated)
	assert.Equal(t, 14.0, a.Breakdown.StatisticalValidity.Score)
	assert.False(t, a.Breakdown.EvidenceStrength.Populated)

	require.Len(t, a.FlawDetection.Fallacies, 2)
	assert.Equal(t, "post hoc reasoning", a.FlawDetection.Fallacies[0].Description)
	assert.Equal(t, types.SeverityLow, a.FlawDetection.Fallacies[0].Severity)
	assert.Equal(t, types.SeverityHigh, a.FlawDetection.Fallacies[1].Severity)
	assert.Equal(t, []types.Confounder{{Factor: "diet"}, {Factor: "age", Impact: "high"}}, a.FlawDetection.Confounders)
	assert.Equal(t, types.SeverityMedium, a.FlawDetection.ValidityThreats[0].Severity)
	assert.Equal(t, types.SeverityLow, a.FlawDetection.ValidityThreats[1].Severity)
	assert.Equal(t, []string{"object issue", "7"}, a.FlawDetection.Issues)

	require.NotNil(t, a.EvidenceHierarchy)
	assert.Equal(t, 6, a.EvidenceHierarchy.Position)
	assert.Equal(t, types.SeverityLow, a.EvidenceHierarchy.QualityWithinLevel)
	require.NotNil(t, a.CausalInference)
	assert.True(t, a.CausalInference.CanEstablishCausality)
	assert.Equal(t, []string{"temporality"}, a.CausalInference.CriteriaMet)
}

func TestNormalizeSeverity(t *testing.T) {
	tests := map[string]types.Severity{
		"high":     types.SeverityHigh,
		"Critical": types.SeverityHigh,
		"severe":   types.SeverityHigh,
		"major":    types.SeverityHigh,
		"medium":   types.SeverityMedium,
		"Moderate": types.SeverityMedium,
		"low":      types.SeverityLow,
		"minor":    types.SeverityLow,
		"":         types.SeverityLow,
		"unknown":  types.SeverityLow,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeSeverity(in), in)
	}
}
