// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package trust turns a merged category breakdown and its detected flaws
// into the final 0-100 trust score. Everything here is pure.
package trust

import (
	"errors"
	"math"

	"github.com/pdiddy/trust-engine/pkg/types"
)

// Adjustment weights subtracted from the 1.0 multiplier.
const (
	highFallacyPenalty   = 0.05
	mediumFallacyPenalty = 0.02
	highThreatPenalty    = 0.03
	mediumThreatPenalty  = 0.01
	confounderPenalty    = 0.05
	weakEvidencePenalty  = 0.05

	// confounderThreshold is the confounder count that triggers the penalty.
	confounderThreshold = 3

	// weakEvidencePosition is the first hierarchy position considered weak.
	weakEvidencePosition = 4

	// MinAdjustment floors the multiplier.
	MinAdjustment = 0.3
)

// ErrNoBreakdown is returned when no category carries a positive maximum,
// so no ratio can be formed.
var ErrNoBreakdown = errors.New("breakdown has no scorable categories")

// Calculate computes the trust score. The returned breakdown is a copy of
// the input with each category's percentage filled in.
func Calculate(breakdown types.AnalysisScores, flaws types.FlawDetection, hierarchy *types.EvidenceHierarchy) (types.TrustScore, error) {
	var total, possible float64
	for _, c := range breakdown.Categories() {
		total += c.Score
		possible += c.MaxScore
		c.Percentage = percentage(c.Score, c.MaxScore)
	}
	if possible <= 0 {
		return types.TrustScore{}, ErrNoBreakdown
	}

	adj := Adjustment(flaws, hierarchy)
	overall := int(math.Round(total / possible * 100 * adj))
	overall = min(100, max(0, overall))

	return types.TrustScore{
		Overall:    overall,
		Rating:     RatingFor(overall),
		Adjustment: adj,
		Breakdown:  breakdown,
	}, nil
}

// Adjustment returns the flaw multiplier in [MinAdjustment, 1].
func Adjustment(flaws types.FlawDetection, hierarchy *types.EvidenceHierarchy) float64 {
	adj := 1.0
	for _, f := range flaws.Fallacies {
		switch f.Severity {
		case types.SeverityHigh:
			adj -= highFallacyPenalty
		case types.SeverityMedium:
			adj -= mediumFallacyPenalty
		}
	}
	for _, v := range flaws.ValidityThreats {
		switch v.Severity {
		case types.SeverityHigh:
			adj -= highThreatPenalty
		case types.SeverityMedium:
			adj -= mediumThreatPenalty
		}
	}
	if len(flaws.Confounders) >= confounderThreshold {
		adj -= confounderPenalty
	}
	if hierarchy != nil && hierarchy.QualityWithinLevel == types.SeverityLow && hierarchy.Position >= weakEvidencePosition {
		adj -= weakEvidencePenalty
	}
	return math.Max(MinAdjustment, adj)
}

// RatingFor maps an overall score to its rating band.
func RatingFor(overall int) types.Rating {
	switch {
	case overall >= 80:
		return types.RatingHighlyReliable
	case overall >= 60:
		return types.RatingModeratelyReliable
	case overall >= 40:
		return types.RatingQuestionable
	default:
		return types.RatingUnreliable
	}
}

func percentage(score, maxScore float64) int {
	if maxScore <= 0 {
		return 0
	}
	return int(math.Round(score / maxScore * 100))
}
