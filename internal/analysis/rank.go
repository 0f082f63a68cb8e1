package analysis

import (
	"sort"
	"strings"

	"github.com/tombee/squash/pkg/errors"
)

// Criteria weights the components of RankOpportunities.
type Criteria struct {
	Confidence    float64
	EvidenceCount float64
	Impact        float64
}

// DefaultCriteria weights impact slightly above confidence and evidence.
var DefaultCriteria = Criteria{Confidence: 0.3, EvidenceCount: 0.3, Impact: 0.4}

var impactKeywords = []string{"revenue", "retention", "engagement", "critical", "essential"}

// RankOpportunities orders opportunities by a weighted blend of stated
// confidence, evidence count (saturating at five items) and business
// keywords in the expected impact. The input is not modified.
func RankOpportunities(opps []Opportunity, c Criteria) []Opportunity {
	ranked := make([]Opportunity, len(opps))
	copy(ranked, opps)
	for i := range ranked {
		score := rankScore(ranked[i], c)
		ranked[i].RankScore = &score
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].RankScore > *ranked[j].RankScore
	})
	return ranked
}

func rankScore(o Opportunity, c Criteria) float64 {
	var confidence float64
	switch o.Confidence {
	case ConfidenceHigh:
		confidence = 1.0
	case ConfidenceMedium:
		confidence = 0.6
	default:
		confidence = 0.3
	}

	evidence := min(float64(len(o.Evidence))/5.0, 1.0)

	text := strings.ToLower(o.ExpectedImpact)
	hits := 0
	for _, kw := range impactKeywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	impact := float64(hits) / float64(len(impactKeywords))

	return confidence*c.Confidence + evidence*c.EvidenceCount + impact*c.Impact
}

// Comparison is one row of CompareFeatures.
type Comparison struct {
	Rank           int     `json:"rank"`
	Name           string  `json:"name"`
	Score          float64 `json:"score"`
	Confidence     string  `json:"confidence"`
	Recommendation string  `json:"recommendation"`
}

// FeatureComparison is the prioritization table of scored features.
type FeatureComparison struct {
	Comparison        []Comparison `json:"comparison"`
	TopRecommendation *Comparison  `json:"top_recommendation"`
}

// CompareFeatures tabulates scored features in their given order. The
// first three are marked high priority.
func CompareFeatures(features []Opportunity) (*FeatureComparison, error) {
	if len(features) < 2 {
		return nil, &errors.ValidationError{
			Field:   "features",
			Message: "Need at least 2 features to compare",
		}
	}
	out := &FeatureComparison{Comparison: make([]Comparison, 0, len(features))}
	for i, f := range features {
		rec := "Consider later"
		if i < 3 {
			rec = "High priority"
		}
		out.Comparison = append(out.Comparison, Comparison{
			Rank:           i + 1,
			Name:           f.Name,
			Score:          f.Score(),
			Confidence:     f.Confidence,
			Recommendation: rec,
		})
	}
	out.TopRecommendation = &out.Comparison[0]
	return out, nil
}
