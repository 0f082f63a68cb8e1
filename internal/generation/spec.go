package generation

import (
	"context"

	"github.com/tombee/squash/internal/analysis"
	"github.com/tombee/squash/pkg/llm"
)

const specPrompt = `You are a senior product manager writing a feature specification.

Create a comprehensive feature spec with:
1. Overview (what it is, why it matters)
2. User stories (who, what, why format)
3. Acceptance criteria (clear, testable conditions)
4. Customer evidence (quotes and data supporting this)
5. Success metrics (how we'll measure success)
6. Dependencies and considerations

Format as JSON:
{
  "overview": {
    "title": "Feature name",
    "problem_statement": "What problem this solves",
    "solution_summary": "How this solves it"
  },
  "user_stories": [
    "As a [user], I want [goal] so that [benefit]"
  ],
  "acceptance_criteria": [
    "Given [context], when [action], then [outcome]"
  ],
  "customer_evidence": {
    "quotes": ["quote1", "quote2"],
    "data_points": ["data1", "data2"]
  },
  "success_metrics": [
    {"metric": "name", "target": "value", "timeframe": "period"}
  ],
  "dependencies": ["dep1", "dep2"],
  "considerations": ["consideration1", "consideration2"]
}`

// FeatureSpec is the product specification of a feature.
type FeatureSpec struct {
	Overview           SpecOverview     `json:"overview"`
	UserStories        []string         `json:"user_stories"`
	AcceptanceCriteria []string         `json:"acceptance_criteria"`
	CustomerEvidence   CustomerEvidence `json:"customer_evidence"`
	SuccessMetrics     []SuccessMetric  `json:"success_metrics"`
	Dependencies       []string         `json:"dependencies"`
	Considerations     []string         `json:"considerations"`
}

type SpecOverview struct {
	Title            string `json:"title,omitempty"`
	ProblemStatement string `json:"problem_statement,omitempty"`
	SolutionSummary  string `json:"solution_summary,omitempty"`
	Error            string `json:"error,omitempty"`
}

type CustomerEvidence struct {
	Quotes     []string `json:"quotes,omitempty"`
	DataPoints []string `json:"data_points,omitempty"`
}

type SuccessMetric struct {
	Metric    string `json:"metric"`
	Target    string `json:"target"`
	Timeframe string `json:"timeframe"`
}

// GenerateSpec writes the specification of feature.
func (g *Generator) GenerateSpec(ctx context.Context, feature analysis.Opportunity, impact *ImpactAssessment) (*FeatureSpec, error) {
	g.logger.Info("generating spec", "feature", feature.Name)

	var s FeatureSpec
	err := g.complete(ctx, llm.TaskSpec, specPrompt, specTemperature, []section{
		{"Feature", feature},
		{"Impact Assessment", impact},
	}, &s)
	if err != nil {
		g.logger.Error("error generating spec", "error", err)
		return specPlaceholder(err), err
	}
	return &s, nil
}

func specPlaceholder(err error) *FeatureSpec {
	return &FeatureSpec{
		Overview:           SpecOverview{Error: err.Error()},
		UserStories:        []string{},
		AcceptanceCriteria: []string{},
		SuccessMetrics:     []SuccessMetric{},
		Dependencies:       []string{},
		Considerations:     []string{},
	}
}
