package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tombee/squash/pkg/llm"
)

const analyzeTemperature = 0.7

const analyzePrompt = `You are an expert product manager analyzing data to identify feature opportunities.

Based on the provided data from analytics, support, sales, interviews, and project management tools, identify the top 5-7 feature opportunities.

For each feature opportunity, provide:
1. Feature name (short, descriptive)
2. Description (2-3 sentences explaining what it is)
3. Justification (why this feature, based on the data)
4. Evidence (specific data points, customer quotes, metrics)
5. Expected impact (how it will help users/business)

Format your response as JSON:
{
  "opportunities": [
    {
      "name": "Feature name",
      "description": "What it does",
      "justification": "Why we should build this",
      "evidence": ["data point 1", "quote 1", "metric 1"],
      "expected_impact": "How it helps",
      "confidence": "high/medium/low"
    }
  ]
}`

// Analyzer asks the model for feature opportunities.
type Analyzer struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewAnalyzer creates an analyzer backed by provider.
func NewAnalyzer(provider llm.Provider, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{provider: provider, logger: logger}
}

// Analyze derives opportunities from the aggregated view. On failure it
// returns a single ErrorOpportunity together with the error.
func (a *Analyzer) Analyze(ctx context.Context, aggregated any) ([]Opportunity, error) {
	a.logger.Info("analyzing data for feature opportunities")

	data, err := json.MarshalIndent(aggregated, "", "  ")
	if err != nil {
		return []Opportunity{ErrorOpportunity(err)}, err
	}

	req := llm.Prompt(llm.TaskAnalyze, analyzePrompt, "Data to analyze:\n\n"+string(data), analyzeTemperature)
	var out struct {
		Opportunities []struct {
			Opportunity
			// Models occasionally emit numbers or objects as evidence.
			Evidence []any `json:"evidence"`
		} `json:"opportunities"`
	}
	if err := llm.CompleteJSON(ctx, a.provider, req, &out); err != nil {
		a.logger.Error("error analyzing features", "error", err)
		return []Opportunity{ErrorOpportunity(err)}, err
	}

	opps := make([]Opportunity, 0, len(out.Opportunities))
	for _, raw := range out.Opportunities {
		o := raw.Opportunity
		o.Evidence = stringifyEvidence(raw.Evidence)
		opps = append(opps, o)
	}
	a.logger.Info("identified feature opportunities", "count", len(opps))
	return opps, nil
}

func stringifyEvidence(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case nil:
		case string:
			out = append(out, v)
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}
