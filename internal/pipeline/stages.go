package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/tombee/squash/internal/connector"
	"github.com/tombee/squash/internal/generation"
	"github.com/tombee/squash/internal/insights"
	"github.com/tombee/squash/internal/log"
	"github.com/tombee/squash/internal/processing"
	"github.com/tombee/squash/pkg/errors"
	"github.com/tombee/squash/pkg/llm"
)

const routeTemperature = 0.3

const routerPrompt = `You are a query classifier for Squash, a product management AI platform that helps PMs make data-driven decisions by analyzing customer interviews, analytics, support tickets, sales data, and project backlogs.

Classify the user's query into exactly one of these types:

- "feature_discovery": The user wants to identify what features or improvements to build next based on data signals (customer pain points, usage gaps, market opportunities).
- "analysis": The user wants to understand patterns, trends, or insights from existing data without necessarily deciding what to build.
- "task_breakdown": The user already has a specific feature in mind and wants it broken down into development tasks, estimates, and milestones.

User query: %s

Respond with ONLY one word: feature_discovery, analysis, or task_breakdown`

// Source categories.
const (
	categoryAnalytics = "analytics"
	categorySupport   = "support"
	categorySales     = "sales"
	categoryPM        = "pm"
)

// primary lists the well-known sources of each category in collection
// order. Other servers join a category through their declared type, after
// the primary ones.
var primary = map[string][]string{
	categoryAnalytics: {"mixpanel", "posthog"},
	categorySupport:   {"zendesk", "intercom"},
	categorySales:     {"salesforce"},
	categoryPM:        {"jira", "confluence"},
}

func (e *Engine) route(ctx context.Context, s *State) error {
	s.QueryType = QueryFeatureDiscovery
	text, err := llm.Text(ctx, e.provider, llm.Prompt(llm.TaskRoute, "", fmt.Sprintf(routerPrompt, s.Query), routeTemperature))
	if err != nil {
		return err
	}
	switch t := strings.ToLower(strings.TrimSpace(text)); t {
	case QueryFeatureDiscovery, QueryAnalysis, QueryTaskBreakdown:
		s.QueryType = t
	}
	e.logger.Info("query routed", log.RunIDKey, s.RunID, "query_type", s.QueryType)
	return nil
}

func (e *Engine) collect(ctx context.Context, s *State) error {
	var errs []error

	if len(s.UploadedFiles) > 0 {
		interviews := make([]processing.Interview, 0, len(s.UploadedFiles))
		for _, path := range s.UploadedFiles {
			iv := e.interviews.Process(ctx, e.documents.Parse(path))
			if iv.Error != "" {
				errs = append(errs, fmt.Errorf("%s: %s", iv.FileName, iv.Error))
			}
			interviews = append(interviews, iv)
		}
		s.Interviews = interviews
		s.InterviewData = processing.AggregateInterviews(interviews)
	}

	groups := categorize(e.servers.Servers())
	fetch := func(c *connector.Connector) insights.Bundle {
		bundle, err := insights.Collect(ctx, c)
		if err != nil {
			errs = append(errs, err)
		}
		return bundle
	}

	s.AnalyticsData = []insights.Bundle{}
	for _, c := range groups[categoryAnalytics] {
		s.AnalyticsData = append(s.AnalyticsData, fetch(c))
	}
	s.SupportData = []insights.Bundle{}
	for _, c := range groups[categorySupport] {
		s.SupportData = append(s.SupportData, fetch(c))
	}
	if sales := groups[categorySales]; len(sales) > 0 {
		s.SalesData = fetch(sales[0])
	}
	s.PMData = []insights.Bundle{}
	for _, c := range groups[categoryPM] {
		s.PMData = append(s.PMData, fetch(c))
	}

	e.logger.Info("data collection completed",
		log.RunIDKey, s.RunID,
		"interviews", len(s.Interviews),
		"analytics", len(s.AnalyticsData),
		"support", len(s.SupportData),
		"sales", s.SalesData != nil,
		"pm", len(s.PMData))
	return errors.Join(errs...)
}

// categorize groups servers by category: primary sources first in their
// fixed order, then other servers of that type in name order.
func categorize(servers []*connector.Connector) map[string][]*connector.Connector {
	byName := make(map[string]*connector.Connector, len(servers))
	for _, c := range servers {
		byName[c.Name()] = c
	}
	isPrimary := map[string]bool{}
	out := map[string][]*connector.Connector{}
	for cat, names := range primary {
		for _, name := range names {
			isPrimary[name] = true
			if c, ok := byName[name]; ok {
				out[cat] = append(out[cat], c)
			}
		}
	}
	for _, c := range servers {
		if isPrimary[c.Name()] {
			continue
		}
		if _, ok := primary[c.Type()]; ok {
			out[c.Type()] = append(out[c.Type()], c)
		}
	}
	return out
}

func (e *Engine) aggregate(_ context.Context, s *State) error {
	in := processing.Input{
		Analytics:  s.AnalyticsData,
		Support:    s.SupportData,
		Sales:      s.SalesData,
		PM:         s.PMData,
		Interviews: s.InterviewData,
	}
	var err error
	s.AggregatedData, err = safeAggregate(in)
	return err
}

// safeAggregate leaves an empty view in place when aggregation panics, so
// later stages still have input.
func safeAggregate(in processing.Input) (agg *processing.Aggregated, err error) {
	defer func() {
		if r := recover(); r != nil {
			agg = &processing.Aggregated{}
			err = fmt.Errorf("aggregation panicked: %v", r)
		}
	}()
	return processing.Aggregate(in), nil
}

func (e *Engine) analyze(ctx context.Context, s *State) error {
	var input any = s.AggregatedData
	if s.AggregatedData == nil {
		input = map[string]any{}
	}
	opps, err := e.analyzer.Analyze(ctx, input)
	s.FeatureOpportunities = opps

	scored, scoreErr := e.scorer.ScoreAll(opps)
	s.ScoredFeatures = scored
	if len(scored) > 0 {
		top := scored[0]
		s.TopFeature = &top
	}
	e.logger.Info("analysis completed",
		log.RunIDKey, s.RunID,
		"opportunities", len(opps),
		"method", e.scorer.Method())
	return errors.Join(err, scoreErr)
}

func (e *Engine) generate(ctx context.Context, s *State) error {
	if s.TopFeature == nil {
		e.logger.Warn("no top feature to generate from", log.RunIDKey, s.RunID)
		return nil
	}

	impact, impactErr := e.generator.AssessImpact(ctx, *s.TopFeature, generation.ImpactContext{
		Analytics: s.AnalyticsData,
		Support:   s.SupportData,
	})
	s.ImpactAssessment = impact

	spec, specErr := e.generator.GenerateSpec(ctx, *s.TopFeature, impact)
	s.FeatureSpec = spec

	ui, uiErr := e.generator.GenerateUIProposals(ctx, spec)
	s.UIProposals = ui

	tasks, tasksErr := e.generator.GenerateTasks(ctx, spec, ui)
	s.TaskBreakdown = tasks

	return errors.Join(impactErr, specErr, uiErr, tasksErr)
}

func (e *Engine) review(_ context.Context, s *State) error {
	s.Completed = true
	return nil
}
