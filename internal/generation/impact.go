package generation

import (
	"context"

	"github.com/tombee/squash/internal/analysis"
	"github.com/tombee/squash/pkg/llm"
)

const impactPrompt = `You are an expert product strategist assessing feature impact.

Analyze the proposed feature and provide:
1. User impact (how it affects users)
2. Business impact (metrics, revenue, retention)
3. Technical considerations (complexity, dependencies)
4. Risks (what could go wrong)
5. Success metrics (how to measure success)

Format as JSON:
{
  "user_impact": {
    "description": "How users benefit",
    "affected_user_segments": ["segment1", "segment2"],
    "adoption_prediction": "high/medium/low"
  },
  "business_impact": {
    "description": "Business outcomes",
    "potential_metrics": {
      "retention": "+X%",
      "engagement": "+Y%"
    }
  },
  "technical_considerations": {
    "complexity": "high/medium/low",
    "estimated_effort": "X weeks",
    "dependencies": ["dep1", "dep2"]
  },
  "risks": ["risk1", "risk2"],
  "success_metrics": ["metric1", "metric2"]
}`

// ImpactAssessment predicts the effect of shipping a feature.
type ImpactAssessment struct {
	UserImpact              UserImpact              `json:"user_impact"`
	BusinessImpact          BusinessImpact          `json:"business_impact"`
	TechnicalConsiderations TechnicalConsiderations `json:"technical_considerations"`
	Risks                   []string                `json:"risks"`
	SuccessMetrics          []string                `json:"success_metrics"`
}

type UserImpact struct {
	Description          string   `json:"description,omitempty"`
	AffectedUserSegments []string `json:"affected_user_segments,omitempty"`
	AdoptionPrediction   string   `json:"adoption_prediction,omitempty"`
	Error                string   `json:"error,omitempty"`
}

type BusinessImpact struct {
	Description      string         `json:"description,omitempty"`
	PotentialMetrics map[string]any `json:"potential_metrics,omitempty"`
	Error            string         `json:"error,omitempty"`
}

type TechnicalConsiderations struct {
	Complexity      string   `json:"complexity,omitempty"`
	EstimatedEffort string   `json:"estimated_effort,omitempty"`
	Dependencies    []string `json:"dependencies,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// ImpactContext is the background handed to the assessor.
type ImpactContext struct {
	Analytics []map[string]any `json:"analytics"`
	Support   []map[string]any `json:"support"`
}

// AssessImpact predicts the user and business impact of feature.
func (g *Generator) AssessImpact(ctx context.Context, feature analysis.Opportunity, background ImpactContext) (*ImpactAssessment, error) {
	g.logger.Info("assessing impact", "feature", feature.Name)

	var a ImpactAssessment
	err := g.complete(ctx, llm.TaskImpact, impactPrompt, impactTemperature, []section{
		{"Feature", feature},
		{"Context", background},
	}, &a)
	if err != nil {
		g.logger.Error("error assessing impact", "error", err)
		return impactPlaceholder(err), err
	}
	return &a, nil
}

func impactPlaceholder(err error) *ImpactAssessment {
	msg := err.Error()
	return &ImpactAssessment{
		UserImpact:              UserImpact{Error: msg},
		BusinessImpact:          BusinessImpact{Error: msg},
		TechnicalConsiderations: TechnicalConsiderations{Error: msg},
		Risks:                   []string{msg},
		SuccessMetrics:          []string{},
	}
}
