// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// InputType identifies how a study was submitted.
type InputType string

const (
	InputURL  InputType = "url"
	InputPDF  InputType = "pdf"
	InputDOI  InputType = "doi"
	InputText InputType = "text"
)

// Valid reports whether t is one of the four supported input types.
func (t InputType) Valid() bool {
	switch t {
	case InputURL, InputPDF, InputDOI, InputText:
		return true
	}
	return false
}

// AnalysisRequest is the input to the pipeline. For PDF input, Content holds
// the base64-encoded file bytes.
type AnalysisRequest struct {
	InputType InputType `json:"inputType" yaml:"input_type" validate:"required,oneof=url pdf doi text"`
	Content   string    `json:"content" yaml:"content" validate:"required"`
}

// Sections holds the named parts of a study located by heading heuristics.
// Empty strings mean the section was not found.
type Sections struct {
	Abstract     string `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Introduction string `json:"introduction,omitempty" yaml:"introduction,omitempty"`
	Methods      string `json:"methods,omitempty" yaml:"methods,omitempty"`
	Results      string `json:"results,omitempty" yaml:"results,omitempty"`
	Discussion   string `json:"discussion,omitempty" yaml:"discussion,omitempty"`
	Conclusions  string `json:"conclusions,omitempty" yaml:"conclusions,omitempty"`
	References   string `json:"references,omitempty" yaml:"references,omitempty"`
}

// SourceHints carries context mined from a study URL: a candidate study
// name and keywords taken from the path or filename.
type SourceHints struct {
	StudyName string   `json:"studyName,omitempty" yaml:"study_name,omitempty"`
	Keywords  []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// ExtractedContent is the normalized document model every input adapter
// produces. It is not modified after the adapter returns it.
type ExtractedContent struct {
	Text     string        `json:"text" yaml:"text"`
	Metadata StudyMetadata `json:"metadata" yaml:"metadata"`
	Sections *Sections     `json:"sections,omitempty" yaml:"sections,omitempty"`
	Hints    *SourceHints  `json:"hints,omitempty" yaml:"hints,omitempty"`

	// SourceURL is the fetched URL or open-access pointer, when known.
	SourceURL string `json:"sourceUrl,omitempty" yaml:"source_url,omitempty"`
}

// StudyType is the design classification of a study.
type StudyType string

const (
	StudyMetaAnalysis   StudyType = "meta-analysis"
	StudyRCT            StudyType = "randomized controlled trial"
	StudyCohort         StudyType = "cohort study"
	StudyCaseControl    StudyType = "case-control study"
	StudyCrossSectional StudyType = "cross-sectional study"
	StudyObservational  StudyType = "observational study"
	StudyInVitro        StudyType = "in vitro study"
	StudyAnimal         StudyType = "animal study"
)

// StudyMetadata describes a study's bibliographic facts. The zero value of
// each field means unknown: adapters and extractors leave a field empty
// rather than guessing.
type StudyMetadata struct {
	Title           string    `json:"title,omitempty" yaml:"title,omitempty"`
	Authors         []string  `json:"authors,omitempty" yaml:"authors,omitempty"`
	Affiliations    []string  `json:"affiliations,omitempty" yaml:"affiliations,omitempty"`
	FundingSources  []string  `json:"fundingSources,omitempty" yaml:"funding_sources,omitempty"`
	Journal         string    `json:"journal,omitempty" yaml:"journal,omitempty"`
	PublicationDate string    `json:"publicationDate,omitempty" yaml:"publication_date,omitempty"`
	DOI             string    `json:"doi,omitempty" yaml:"doi,omitempty"`
	StudyType       StudyType `json:"studyType,omitempty" yaml:"study_type,omitempty"`
	SampleSize      int       `json:"sampleSize,omitempty" yaml:"sample_size,omitempty"`

	CitationQuality *CitationQuality `json:"citationQuality,omitempty" yaml:"citation_quality,omitempty"`
	Credibility     *Credibility     `json:"credibility,omitempty" yaml:"credibility,omitempty"`
}

// Credibility summarizes funding and author signals reported by the
// analysis provider.
type Credibility struct {
	FundingConflicts    []string `json:"fundingConflicts,omitempty" yaml:"funding_conflicts,omitempty"`
	ConflictsOfInterest string   `json:"conflictsOfInterest,omitempty" yaml:"conflicts_of_interest,omitempty"`
	AuthorExpertise     string   `json:"authorExpertise,omitempty" yaml:"author_expertise,omitempty"`
	JournalReputation   string   `json:"journalReputation,omitempty" yaml:"journal_reputation,omitempty"`
}

// Citation is one in-text citation string found in a study.
type Citation struct {
	Text     string   `json:"text" yaml:"text"`
	Context  string   `json:"context" yaml:"context"`
	Verified bool     `json:"verified" yaml:"verified"`
	Issues   []string `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// CitationVerification is the per-citation verification outcome for a study.
type CitationVerification struct {
	Citations      []Citation `json:"citations" yaml:"citations"`
	TotalCitations int        `json:"totalCitations" yaml:"total_citations"`
	VerifiedCount  int        `json:"verifiedCount" yaml:"verified_count"`
	IssuesFound    int        `json:"issuesFound" yaml:"issues_found"`
}

// CitationQualityLevel buckets the aggregate citation score.
type CitationQualityLevel string

const (
	CitationQualityHigh   CitationQualityLevel = "high"
	CitationQualityMedium CitationQualityLevel = "medium"
	CitationQualityLow    CitationQualityLevel = "low"
)

// CitationQuality is the aggregate citation score attached to metadata.
type CitationQuality struct {
	Quality CitationQualityLevel `json:"quality" yaml:"quality"`
	Score   float64              `json:"score" yaml:"score"`
	Issues  []string             `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// AnalysisResult is the terminal output of the pipeline.
type AnalysisResult struct {
	InputType         InputType            `json:"inputType" yaml:"input_type"`
	SourceURL         string               `json:"sourceUrl,omitempty" yaml:"source_url,omitempty"`
	Metadata          StudyMetadata        `json:"metadata" yaml:"metadata"`
	TrustScore        TrustScore           `json:"trustScore" yaml:"trust_score"`
	FlawDetection     FlawDetection        `json:"flawDetection" yaml:"flaw_detection"`
	ExpertContext     ExpertContext        `json:"expertContext" yaml:"expert_context"`
	EvidenceHierarchy *EvidenceHierarchy   `json:"evidenceHierarchy,omitempty" yaml:"evidence_hierarchy,omitempty"`
	CausalInference   *CausalInference     `json:"causalInference,omitempty" yaml:"causal_inference,omitempty"`
	SimpleSummary     string               `json:"simpleSummary" yaml:"simple_summary"`
	TechnicalCritique string               `json:"technicalCritique" yaml:"technical_critique"`
	BiasReport        string               `json:"biasReport" yaml:"bias_report"`
	Recommendations   []string             `json:"recommendations" yaml:"recommendations"`
	KeyTakeaways      []string             `json:"keyTakeaways" yaml:"key_takeaways"`
	StudyLimitations  []string             `json:"studyLimitations" yaml:"study_limitations"`
	Citations         CitationVerification `json:"citations" yaml:"citations"`
	Cached            bool                 `json:"cached" yaml:"cached"`
	AnalyzedAt        time.Time            `json:"analyzedAt" yaml:"analyzed_at"`
}
