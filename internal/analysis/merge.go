// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import "github.com/pdiddy/trust-engine/pkg/types"

// Merge combines the two phase results. Category scores come from the
// owning phase (phase 1 for methodology, evidence strength,
// reproducibility, and statistical validity; phase 2 for bias) unless only
// the other phase populated them. Issues, strengths, and every list field
// are concatenated phase 1 first without deduplication.
func Merge(p1, p2 types.Analysis) types.Analysis {
	var out types.Analysis

	owners := []bool{true, true, false, true, true} // Categories() order; true = phase 1
	dst := out.Breakdown.Categories()
	c1 := p1.Breakdown.Categories()
	c2 := p2.Breakdown.Categories()
	for i := range dst {
		*dst[i] = mergeCategory(*c1[i], *c2[i], owners[i])
	}

	out.FlawDetection = types.FlawDetection{
		Fallacies:               concat(p1.FlawDetection.Fallacies, p2.FlawDetection.Fallacies),
		Confounders:             concat(p1.FlawDetection.Confounders, p2.FlawDetection.Confounders),
		ValidityThreats:         concat(p1.FlawDetection.ValidityThreats, p2.FlawDetection.ValidityThreats),
		OtherConfoundingFactors: concat(p1.FlawDetection.OtherConfoundingFactors, p2.FlawDetection.OtherConfoundingFactors),
		Issues:                  concat(p1.FlawDetection.Issues, p2.FlawDetection.Issues),
	}

	out.ExpertContext = types.ExpertContext{
		Consensus:       first(p2.ExpertContext.Consensus, p1.ExpertContext.Consensus),
		ReplicationInfo: first(p2.ExpertContext.ReplicationInfo, p1.ExpertContext.ReplicationInfo),
		Controversies:   concat(p1.ExpertContext.Controversies, p2.ExpertContext.Controversies),
		RecentUpdates:   concat(p1.ExpertContext.RecentUpdates, p2.ExpertContext.RecentUpdates),
		RelatedStudies:  concat(p1.ExpertContext.RelatedStudies, p2.ExpertContext.RelatedStudies),
	}

	out.EvidenceHierarchy = firstPtr(p1.EvidenceHierarchy, p2.EvidenceHierarchy)
	out.CausalInference = firstPtr(p2.CausalInference, p1.CausalInference)
	out.Credibility = firstPtr(p2.Credibility, p1.Credibility)

	out.SimpleSummary = first(p1.SimpleSummary, p2.SimpleSummary)
	out.TechnicalCritique = first(p1.TechnicalCritique, p2.TechnicalCritique)
	out.BiasReport = first(p2.BiasReport, p1.BiasReport)

	out.Recommendations = concat(p1.Recommendations, p2.Recommendations)
	out.KeyTakeaways = concat(p1.KeyTakeaways, p2.KeyTakeaways)
	out.StudyLimitations = concat(p1.StudyLimitations, p2.StudyLimitations)
	return out
}

// mergeCategory takes the score from the owning phase when it populated
// one, else from the other phase, and concatenates both phases' notes.
func mergeCategory(c1, c2 types.CategoryScore, phase1Owns bool) types.CategoryScore {
	owner, other := c1, c2
	if !phase1Owns {
		owner, other = c2, c1
	}
	src := owner
	if !owner.Populated && other.Populated {
		src = other
	}
	merged := types.CategoryScore{
		Score:       src.Score,
		MaxScore:    src.MaxScore,
		Explanation: first(src.Explanation, owner.Explanation, other.Explanation),
		Populated:   src.Populated,
		Issues:      concat(c1.Issues, c2.Issues),
		Strengths:   concat(c1.Strengths, c2.Strengths),
	}
	if merged.MaxScore <= 0 {
		merged.MaxScore = first(owner.MaxScore, other.MaxScore)
	}
	return merged
}

func concat[T any](a, b []T) []T {
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func first[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}

func firstPtr[T any](a, b *T) *T {
	if a != nil {
		return a
	}
	return b
}
