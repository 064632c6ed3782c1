// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pdiddy/trust-engine/pkg/types"
)

// ErrNoJSON is returned when a response holds no decodable JSON object.
var ErrNoJSON = errors.New("response contains no JSON object")

// categoryKeys maps breakdown keys to their default maximum.
var categoryKeys = []struct {
	key string
	max float64
}{
	{"methodology", types.MaxMethodology},
	{"evidenceStrength", types.MaxEvidenceStrength},
	{"bias", types.MaxBias},
	{"reproducibility", types.MaxReproducibility},
	{"statisticalValidity", types.MaxStatisticalValidity},
}

// ParseAnalysis decodes a provider response into a fully defaulted
// Analysis. The response is first decoded whole; if that fails the
// substring between the first '{' and the last '}' is tried.
func ParseAnalysis(raw string) (types.Analysis, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return types.Analysis{}, err
	}
	return materialize(obj), nil
}

func decodeObject(raw string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil && obj != nil {
		return obj, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("decoding embedded JSON: %w", err)
	}
	if obj == nil {
		return nil, ErrNoJSON
	}
	return obj, nil
}

// materialize converts the loosely typed object into an Analysis in which
// every list is non-nil and every category carries a maximum.
func materialize(obj map[string]any) types.Analysis {
	var a types.Analysis

	breakdown := asMap(obj["breakdown"])
	if breakdown == nil {
		// Some answers put the categories at the top level.
		breakdown = obj
	}
	cats := a.Breakdown.Categories()
	for i, ck := range categoryKeys {
		*cats[i] = parseCategory(breakdown[ck.key], ck.max)
	}

	flaws := asMap(obj["flawDetection"])
	a.FlawDetection = types.FlawDetection{
		Fallacies:               parseFallacies(flaws["fallacies"]),
		Confounders:             parseConfounders(flaws["confounders"]),
		ValidityThreats:         parseThreats(flaws["validityThreats"]),
		OtherConfoundingFactors: asStrings(flaws["otherConfoundingFactors"]),
		Issues:                  asStrings(flaws["issues"]),
	}

	expert := asMap(obj["expertContext"])
	a.ExpertContext = types.ExpertContext{
		Consensus:       asString(expert["consensus"]),
		ReplicationInfo: asString(expert["replicationInfo"]),
		Controversies:   asStrings(expert["controversies"]),
		RecentUpdates:   asStrings(expert["recentUpdates"]),
		RelatedStudies:  asStrings(expert["relatedStudies"]),
	}

	if m := asMap(obj["evidenceHierarchy"]); len(m) > 0 {
		h := &types.EvidenceHierarchy{
			Level:         asString(m["level"]),
			Justification: asString(m["justification"]),
		}
		if pos, ok := asNumber(m["position"]); ok {
			h.Position = int(math.Max(1, math.Min(6, math.Round(pos))))
		}
		if q := asString(m["qualityWithinLevel"]); q != "" {
			h.QualityWithinLevel = NormalizeSeverity(q)
		}
		a.EvidenceHierarchy = h
	}

	if m := asMap(obj["causalInference"]); len(m) > 0 {
		can, _ := m["canEstablishCausality"].(bool)
		a.CausalInference = &types.CausalInference{
			CanEstablishCausality: can,
			Reasoning:             asString(m["reasoning"]),
			CriteriaMet:           asStrings(m["criteriaMet"]),
			CriteriaMissing:       asStrings(m["criteriaMissing"]),
		}
	}

	if m := asMap(obj["credibility"]); len(m) > 0 {
		a.Credibility = &types.Credibility{
			FundingConflicts:    asStrings(m["fundingConflicts"]),
			ConflictsOfInterest: asString(m["conflictsOfInterest"]),
			AuthorExpertise:     asString(m["authorExpertise"]),
			JournalReputation:   asString(m["journalReputation"]),
		}
	}

	a.SimpleSummary = asString(obj["simpleSummary"])
	a.TechnicalCritique = asString(obj["technicalCritique"])
	a.BiasReport = asString(obj["biasReport"])
	a.Recommendations = asStrings(obj["recommendations"])
	a.KeyTakeaways = asStrings(obj["keyTakeaways"])
	a.StudyLimitations = asStrings(obj["studyLimitations"])
	return a
}

// parseCategory accepts either a category object or a bare number. The
// score is clamped to [0, maxScore].
func parseCategory(v any, defaultMax float64) types.CategoryScore {
	c := types.CategoryScore{MaxScore: defaultMax, Issues: []string{}, Strengths: []string{}}

	if n, ok := asNumber(v); ok {
		c.Score = n
		c.Populated = true
	} else if m := asMap(v); m != nil {
		if n, ok := asNumber(m["score"]); ok {
			c.Score = n
			c.Populated = true
		}
		if n, ok := asNumber(m["maxScore"]); ok && n > 0 {
			c.MaxScore = n
		}
		c.Explanation = asString(m["explanation"])
		c.Issues = asStrings(m["issues"])
		c.Strengths = asStrings(m["strengths"])
	}

	c.Score = math.Max(0, math.Min(c.MaxScore, c.Score))
	return c
}

func parseFallacies(v any) []types.Fallacy {
	out := []types.Fallacy{}
	for _, item := range asList(v) {
		if s, ok := item.(string); ok {
			out = append(out, types.Fallacy{Description: s, Severity: types.SeverityLow})
			continue
		}
		m := asMap(item)
		if m == nil {
			continue
		}
		out = append(out, types.Fallacy{
			Type:        asString(m["type"]),
			Description: asString(m["description"]),
			Location:    asString(m["location"]),
			Severity:    NormalizeSeverity(asString(m["severity"])),
		})
	}
	return out
}

func parseConfounders(v any) []types.Confounder {
	out := []types.Confounder{}
	for _, item := range asList(v) {
		if s, ok := item.(string); ok {
			out = append(out, types.Confounder{Factor: s})
			continue
		}
		m := asMap(item)
		if m == nil {
			continue
		}
		out = append(out, types.Confounder{
			Factor:      asString(m["factor"]),
			Description: asString(m["description"]),
			Impact:      asString(m["impact"]),
		})
	}
	return out
}

func parseThreats(v any) []types.ValidityThreat {
	out := []types.ValidityThreat{}
	for _, item := range asList(v) {
		if s, ok := item.(string); ok {
			out = append(out, types.ValidityThreat{Description: s, Severity: types.SeverityLow})
			continue
		}
		m := asMap(item)
		if m == nil {
			continue
		}
		out = append(out, types.ValidityThreat{
			Type:        asString(m["type"]),
			Description: asString(m["description"]),
			Severity:    NormalizeSeverity(asString(m["severity"])),
		})
	}
	return out
}

// NormalizeSeverity maps free-form severity words onto high, medium, and
// low. Unrecognized or empty values become low.
func NormalizeSeverity(s string) types.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "critical", "severe", "major":
		return types.SeverityHigh
	case "medium", "moderate":
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// asStrings returns a non-nil list. Object items contribute their
// description, text, or name field.
func asStrings(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range t {
			var s string
			if m := asMap(item); m != nil {
				for _, k := range []string{"description", "text", "name", "title"} {
					if s = asString(m[k]); s != "" {
						break
					}
				}
			} else {
				s = asString(item)
			}
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// asNumber accepts JSON numbers and numeric strings such as "18" or "18/25".
func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if i := strings.Index(s, "/"); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
