// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "slices"

// Default maximum points per scoring category. The five maxima sum to 100.
const (
	MaxMethodology         = 25.0
	MaxEvidenceStrength    = 20.0
	MaxBias                = 20.0
	MaxReproducibility     = 15.0
	MaxStatisticalValidity = 20.0
)

// CategoryScore is one of the five scored dimensions of a study.
type CategoryScore struct {
	Score       float64  `json:"score" yaml:"score"`
	MaxScore    float64  `json:"maxScore" yaml:"max_score"`
	Percentage  int      `json:"percentage" yaml:"percentage"`
	Explanation string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Issues      []string `json:"issues" yaml:"issues"`
	Strengths   []string `json:"strengths" yaml:"strengths"`

	// Populated is true when the provider supplied the score itself rather
	// than the category being filled with defaults.
	Populated bool `json:"-" yaml:"-"`
}

// AnalysisScores is the category breakdown of a trust score.
type AnalysisScores struct {
	Methodology         CategoryScore `json:"methodology" yaml:"methodology"`
	EvidenceStrength    CategoryScore `json:"evidenceStrength" yaml:"evidence_strength"`
	Bias                CategoryScore `json:"bias" yaml:"bias"`
	Reproducibility     CategoryScore `json:"reproducibility" yaml:"reproducibility"`
	StatisticalValidity CategoryScore `json:"statisticalValidity" yaml:"statistical_validity"`
}

// Categories returns pointers to the five categories in a fixed order so
// callers can iterate without naming each field.
func (s *AnalysisScores) Categories() []*CategoryScore {
	return []*CategoryScore{
		&s.Methodology,
		&s.EvidenceStrength,
		&s.Bias,
		&s.Reproducibility,
		&s.StatisticalValidity,
	}
}

// Severity grades a detected flaw.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Fallacy is a logical fallacy found in a study's reasoning.
type Fallacy struct {
	Type        string   `json:"type" yaml:"type"`
	Description string   `json:"description" yaml:"description"`
	Location    string   `json:"location,omitempty" yaml:"location,omitempty"`
	Severity    Severity `json:"severity" yaml:"severity"`
}

// Confounder is an uncontrolled variable that may explain a result.
type Confounder struct {
	Factor      string `json:"factor" yaml:"factor"`
	Description string `json:"description" yaml:"description"`
	Impact      string `json:"impact,omitempty" yaml:"impact,omitempty"`
}

// ValidityThreat is a threat to internal or external validity.
type ValidityThreat struct {
	Type        string   `json:"type" yaml:"type"`
	Description string   `json:"description" yaml:"description"`
	Severity    Severity `json:"severity" yaml:"severity"`
}

// FlawDetection groups every flaw the provider reported.
type FlawDetection struct {
	Fallacies               []Fallacy        `json:"fallacies" yaml:"fallacies"`
	Confounders             []Confounder     `json:"confounders" yaml:"confounders"`
	ValidityThreats         []ValidityThreat `json:"validityThreats" yaml:"validity_threats"`
	OtherConfoundingFactors []string         `json:"otherConfoundingFactors" yaml:"other_confounding_factors"`
	Issues                  []string         `json:"issues" yaml:"issues"`
}

// ExpertContext places a study within its field.
type ExpertContext struct {
	Consensus       string   `json:"consensus" yaml:"consensus"`
	ReplicationInfo string   `json:"replicationInfo" yaml:"replication_info"`
	Controversies   []string `json:"controversies" yaml:"controversies"`
	RecentUpdates   []string `json:"recentUpdates" yaml:"recent_updates"`
	RelatedStudies  []string `json:"relatedStudies" yaml:"related_studies"`
}

// EvidenceHierarchy positions a study on the six-level evidence pyramid,
// where position 1 is a systematic review and 6 is expert opinion.
type EvidenceHierarchy struct {
	Level              string   `json:"level" yaml:"level"`
	Position           int      `json:"position" yaml:"position"`
	QualityWithinLevel Severity `json:"qualityWithinLevel" yaml:"quality_within_level"`
	Justification      string   `json:"justification,omitempty" yaml:"justification,omitempty"`
}

// CausalInference records whether a study's design supports causal claims.
type CausalInference struct {
	CanEstablishCausality bool     `json:"canEstablishCausality" yaml:"can_establish_causality"`
	Reasoning             string   `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	CriteriaMet           []string `json:"criteriaMet,omitempty" yaml:"criteria_met,omitempty"`
	CriteriaMissing       []string `json:"criteriaMissing,omitempty" yaml:"criteria_missing,omitempty"`
}

// Analysis is one provider result: either a single phase or the merge of
// both phases. Every field is materialized with defaults, so a missing
// provider field is an empty value, never nil.
type Analysis struct {
	Breakdown         AnalysisScores     `json:"breakdown" yaml:"breakdown"`
	FlawDetection     FlawDetection      `json:"flawDetection" yaml:"flaw_detection"`
	ExpertContext     ExpertContext      `json:"expertContext" yaml:"expert_context"`
	EvidenceHierarchy *EvidenceHierarchy `json:"evidenceHierarchy,omitempty" yaml:"evidence_hierarchy,omitempty"`
	CausalInference   *CausalInference   `json:"causalInference,omitempty" yaml:"causal_inference,omitempty"`
	Credibility       *Credibility       `json:"credibility,omitempty" yaml:"credibility,omitempty"`
	SimpleSummary     string             `json:"simpleSummary" yaml:"simple_summary"`
	TechnicalCritique string             `json:"technicalCritique" yaml:"technical_critique"`
	BiasReport        string             `json:"biasReport" yaml:"bias_report"`
	Recommendations   []string           `json:"recommendations" yaml:"recommendations"`
	KeyTakeaways      []string           `json:"keyTakeaways" yaml:"key_takeaways"`
	StudyLimitations  []string           `json:"studyLimitations" yaml:"study_limitations"`
}

// Rating is the categorical reading of an overall trust score.
type Rating string

const (
	RatingHighlyReliable     Rating = "Highly Reliable"
	RatingModeratelyReliable Rating = "Moderately Reliable"
	RatingQuestionable       Rating = "Questionable"
	RatingUnreliable         Rating = "Unreliable"
)

// TrustScore is the final 0-100 reliability score of a study.
type TrustScore struct {
	Overall    int            `json:"overall" yaml:"overall"`
	Rating     Rating         `json:"rating" yaml:"rating"`
	Adjustment float64        `json:"adjustment" yaml:"adjustment"`
	Breakdown  AnalysisScores `json:"breakdown" yaml:"breakdown"`
}

// Clone returns a deep copy of a, so the copy can be handed to a caller
// while a stays shared.
func (a Analysis) Clone() Analysis {
	out := a
	src := a.Breakdown.Categories()
	for i, c := range out.Breakdown.Categories() {
		*c = src[i].clone()
	}
	out.FlawDetection = FlawDetection{
		Fallacies:               slices.Clone(a.FlawDetection.Fallacies),
		Confounders:             slices.Clone(a.FlawDetection.Confounders),
		ValidityThreats:         slices.Clone(a.FlawDetection.ValidityThreats),
		OtherConfoundingFactors: slices.Clone(a.FlawDetection.OtherConfoundingFactors),
		Issues:                  slices.Clone(a.FlawDetection.Issues),
	}
	out.ExpertContext.Controversies = slices.Clone(a.ExpertContext.Controversies)
	out.ExpertContext.RecentUpdates = slices.Clone(a.ExpertContext.RecentUpdates)
	out.ExpertContext.RelatedStudies = slices.Clone(a.ExpertContext.RelatedStudies)
	if a.EvidenceHierarchy != nil {
		h := *a.EvidenceHierarchy
		out.EvidenceHierarchy = &h
	}
	if a.CausalInference != nil {
		ci := *a.CausalInference
		ci.CriteriaMet = slices.Clone(ci.CriteriaMet)
		ci.CriteriaMissing = slices.Clone(ci.CriteriaMissing)
		out.CausalInference = &ci
	}
	if a.Credibility != nil {
		cr := *a.Credibility
		cr.FundingConflicts = slices.Clone(cr.FundingConflicts)
		out.Credibility = &cr
	}
	out.Recommendations = slices.Clone(a.Recommendations)
	out.KeyTakeaways = slices.Clone(a.KeyTakeaways)
	out.StudyLimitations = slices.Clone(a.StudyLimitations)
	return out
}

func (c *CategoryScore) clone() CategoryScore {
	out := *c
	out.Issues = slices.Clone(c.Issues)
	out.Strengths = slices.Clone(c.Strengths)
	return out
}
