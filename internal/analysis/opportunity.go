// Package analysis turns the aggregated view into ranked feature
// opportunities: the analyzer asks the model for candidates and the scorer
// orders them with RICE, ICE or a custom formula.
package analysis

// Confidence levels reported by the analyzer.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Opportunity is one candidate feature. Score fields are filled in by the
// Scorer for the method it ran.
type Opportunity struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Justification  string   `json:"justification"`
	Evidence       []string `json:"evidence"`
	ExpectedImpact string   `json:"expected_impact"`
	Confidence     string   `json:"confidence"`

	RICEScore      *float64        `json:"rice_score,omitempty"`
	RICEComponents *RICEComponents `json:"rice_components,omitempty"`
	ICEScore       *float64        `json:"ice_score,omitempty"`
	ICEComponents  *ICEComponents  `json:"ice_components,omitempty"`
	CustomScore    *float64        `json:"custom_score,omitempty"`

	// RankScore is set by RankOpportunities.
	RankScore *float64 `json:"rank_score,omitempty"`
}

// RICEComponents are the estimated inputs of a RICE score.
type RICEComponents struct {
	Reach      int     `json:"reach"`
	Impact     float64 `json:"impact"`
	Confidence float64 `json:"confidence"`
	Effort     float64 `json:"effort"`
}

// ICEComponents are the estimated inputs of an ICE score, on a 0-10 scale.
type ICEComponents struct {
	Impact     float64 `json:"impact"`
	Confidence float64 `json:"confidence"`
	Ease       float64 `json:"ease"`
}

// Score returns whichever score is set, preferring RICE then ICE then
// custom, or 0.
func (o Opportunity) Score() float64 {
	switch {
	case o.RICEScore != nil:
		return *o.RICEScore
	case o.ICEScore != nil:
		return *o.ICEScore
	case o.CustomScore != nil:
		return *o.CustomScore
	}
	return 0
}

// ErrorOpportunity is the placeholder returned when analysis fails.
func ErrorOpportunity(err error) Opportunity {
	return Opportunity{
		Name:           "Error",
		Description:    "Failed to analyze features",
		Justification:  err.Error(),
		Evidence:       []string{},
		ExpectedImpact: "N/A",
		Confidence:     ConfidenceLow,
	}
}
