// Package processing merges collected source payloads into one view and
// holds the document, interview and analytics processors that feed it.
package processing

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	maxThemes          = 20
	maxTopIssues       = 10
	maxCrossReferences = 10
)

// Input is everything the collect stage gathered.
type Input struct {
	Analytics  []map[string]any
	Support    []map[string]any
	Sales      map[string]any
	PM         []map[string]any
	Interviews *InterviewSummary
}

// Aggregated is the merged view handed to the analyzer. Summaries are nil
// when their category had no data.
type Aggregated struct {
	AnalyticsSummary *AnalyticsSummary `json:"analytics_summary,omitempty"`
	SupportSummary   *SupportSummary   `json:"support_summary,omitempty"`
	SalesSummary     *SalesSummary     `json:"sales_summary,omitempty"`
	PMSummary        *PMSummary        `json:"pm_summary,omitempty"`
	InterviewSummary *InterviewSummary `json:"interview_summary,omitempty"`
	CommonThemes     Themes            `json:"common_themes"`
	CrossReferences  []CrossReference  `json:"cross_references"`
}

type AnalyticsSummary struct {
	Sources    []string `json:"sources"`
	KeyMetrics []any    `json:"key_metrics"`
	Trends     []any    `json:"trends"`
}

type SupportSummary struct {
	TotalSources  int              `json:"total_sources"`
	TopIssues     []map[string]any `json:"top_issues"`
	SentimentData []any            `json:"sentiment_data"`
}

type SalesSummary struct {
	Opportunities    any `json:"opportunities"`
	WinLoss          any `json:"win_loss"`
	CustomerFeedback any `json:"customer_feedback"`
}

type PMSummary struct {
	TotalSources    int   `json:"total_sources"`
	TopBacklogItems []any `json:"top_backlog_items"`
}

// Themes are the cross-source recurring statements, deduplicated in
// first-seen order.
type Themes struct {
	PainPoints       []string `json:"pain_points"`
	FeatureRequests  []string `json:"feature_requests"`
	PositiveMentions []string `json:"positive_mentions"`
}

// CrossReference links a pain point to a feature request sharing a word.
type CrossReference struct {
	PainPoint      string `json:"pain_point"`
	RelatedRequest string `json:"related_request"`
	Confidence     string `json:"confidence"`
}

// Aggregate builds the merged view. It is deterministic: the same input
// always yields the same output, in the same order.
func Aggregate(in Input) *Aggregated {
	themes := extractThemes(in)
	return &Aggregated{
		AnalyticsSummary: summarizeAnalytics(in.Analytics),
		SupportSummary:   summarizeSupport(in.Support),
		SalesSummary:     summarizeSales(in.Sales),
		PMSummary:        summarizePM(in.PM),
		InterviewSummary: in.Interviews,
		CommonThemes:     themes,
		CrossReferences:  findCrossReferences(themes),
	}
}

func summarizeAnalytics(data []map[string]any) *AnalyticsSummary {
	if len(data) == 0 {
		return nil
	}
	s := &AnalyticsSummary{Sources: []string{}, KeyMetrics: []any{}, Trends: []any{}}
	for _, item := range data {
		s.Sources = append(s.Sources, getString(item, "source"))
		if v, ok := item["user_metrics"]; ok {
			s.KeyMetrics = append(s.KeyMetrics, v)
		}
		if v, ok := item["events"]; ok {
			s.Trends = append(s.Trends, v)
		}
	}
	return s
}

// topIssues returns the issue entries of a support bundle. Zendesk puts
// them under its metrics section, other sources under tickets.
func topIssues(item map[string]any) []map[string]any {
	var out []map[string]any
	for _, section := range []string{"tickets", "metrics"} {
		issues, ok := field(item[section], "top_issues")
		if !ok {
			continue
		}
		for _, issue := range asList(issues) {
			if m, ok := asMap(issue); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

func summarizeSupport(data []map[string]any) *SupportSummary {
	if len(data) == 0 {
		return nil
	}
	var issues []map[string]any
	sentiments := []any{}
	for _, item := range data {
		issues = append(issues, topIssues(item)...)
		if v, ok := item["sentiment"]; ok {
			sentiments = append(sentiments, v)
		}
	}
	sort.SliceStable(issues, func(i, j int) bool {
		return asFloat(issues[i]["count"]) > asFloat(issues[j]["count"])
	})
	if len(issues) > maxTopIssues {
		issues = issues[:maxTopIssues]
	}
	if issues == nil {
		issues = []map[string]any{}
	}
	return &SupportSummary{TotalSources: len(data), TopIssues: issues, SentimentData: sentiments}
}

func summarizeSales(data map[string]any) *SalesSummary {
	if len(data) == 0 {
		return nil
	}
	s := &SalesSummary{
		Opportunities:    data["opportunities"],
		WinLoss:          data["win_loss"],
		CustomerFeedback: data["feedback"],
	}
	if s.Opportunities == nil {
		s.Opportunities = map[string]any{}
	}
	if s.WinLoss == nil {
		s.WinLoss = map[string]any{}
	}
	if s.CustomerFeedback == nil {
		s.CustomerFeedback = []any{}
	}
	return s
}

func summarizePM(data []map[string]any) *PMSummary {
	if len(data) == 0 {
		return nil
	}
	items := []any{}
	for _, item := range data {
		if top, ok := field(item["backlog"], "top_priority"); ok {
			items = append(items, asList(top)...)
		}
	}
	return &PMSummary{TotalSources: len(data), TopBacklogItems: items}
}

func extractThemes(in Input) Themes {
	var pains, requests, positives dedup

	if iv := in.Interviews; iv != nil {
		pains.add(iv.PainPoints...)
		requests.add(iv.FeatureRequests...)
		positives.add(iv.PositiveFeedback...)
	}
	for _, item := range in.Support {
		for _, issue := range topIssues(item) {
			pains.add(getString(issue, "issue"))
		}
	}
	if reasons, ok := field(in.Sales["win_loss"], "loss_reasons"); ok {
		pains.add(asStrings(reasons)...)
	}

	return Themes{
		PainPoints:       pains.first(maxThemes),
		FeatureRequests:  requests.first(maxThemes),
		PositiveMentions: positives.first(maxThemes),
	}
}

// findCrossReferences pairs each pain point with every feature request that
// contains one of the pain point's words longer than four characters.
func findCrossReferences(t Themes) []CrossReference {
	refs := []CrossReference{}
	for _, pain := range t.PainPoints {
		var words []string
		for _, w := range strings.Fields(strings.ToLower(pain)) {
			if utf8.RuneCountInString(w) > 4 {
				words = append(words, w)
			}
		}
		for _, req := range t.FeatureRequests {
			lower := strings.ToLower(req)
			for _, w := range words {
				if strings.Contains(lower, w) {
					refs = append(refs, CrossReference{PainPoint: pain, RelatedRequest: req, Confidence: "medium"})
					break
				}
			}
		}
	}
	if len(refs) > maxCrossReferences {
		refs = refs[:maxCrossReferences]
	}
	return refs
}
