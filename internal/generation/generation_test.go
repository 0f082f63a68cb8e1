package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/squash/internal/analysis"
	"github.com/tombee/squash/pkg/llm"
	"github.com/tombee/squash/pkg/llm/llmtest"
	"github.com/tombee/squash/pkg/llm/providers"
)

var feature = analysis.Opportunity{
	Name:        "Bulk Data Export",
	Description: "Export everything",
	Confidence:  analysis.ConfidenceHigh,
	Evidence:    []string{"67 tickets"},
}

// offline answers every task with a well-formed canned artifact.
func offline() llm.Provider { return providers.NewOfflineProvider() }

func TestGeneratorChain(t *testing.T) {
	ctx := context.Background()
	g := New(offline(), nil)

	impact, err := g.AssessImpact(ctx, feature, ImpactContext{})
	require.NoError(t, err)
	assert.Equal(t, "high", impact.UserImpact.AdoptionPrediction)
	assert.Equal(t, "+5%", impact.BusinessImpact.PotentialMetrics["retention"])
	assert.Len(t, impact.Risks, 2)

	spec, err := g.GenerateSpec(ctx, feature, impact)
	require.NoError(t, err)
	assert.Equal(t, "Bulk Data Export", spec.Overview.Title)
	assert.Len(t, spec.SuccessMetrics, 2)

	ui, err := g.GenerateUIProposals(ctx, spec)
	require.NoError(t, err)
	assert.Len(t, ui.UIChanges, 2)
	assert.Equal(t, 2, ui.UserFlow[1].Step)

	tasks, err := g.GenerateTasks(ctx, spec, ui)
	require.NoError(t, err)
	assert.Len(t, tasks.Tasks, 5)
	assert.Equal(t, "46 hours", tasks.TotalEstimatedEffort)
}

func TestGeneratorPrompts(t *testing.T) {
	p := llmtest.New()
	g := New(p, nil)
	ctx := context.Background()

	impact, _ := g.AssessImpact(ctx, feature, ImpactContext{Support: []map[string]any{{"source": "zendesk"}}})
	spec, _ := g.GenerateSpec(ctx, feature, impact)
	ui, _ := g.GenerateUIProposals(ctx, spec)
	_, _ = g.GenerateTasks(ctx, spec, ui)

	tests := []struct {
		task     string
		temp     float64
		contains []string
	}{
		{llm.TaskImpact, 0.5, []string{"Feature:\n{", "Context:\n{", "zendesk"}},
		{llm.TaskSpec, 0.6, []string{"Feature:\n{", "Impact Assessment:\n{"}},
		{llm.TaskUI, 0.7, []string{"Feature Spec:\n{"}},
		{llm.TaskTasks, 0.4, []string{"Feature Spec:\n{", "UI Proposals:\n{"}},
	}
	for _, tt := range tests {
		t.Run(tt.task, func(t *testing.T) {
			calls := p.CallsFor(tt.task)
			require.Len(t, calls, 1)
			assert.Equal(t, tt.temp, *calls[0].Temperature)
			user := calls[0].Messages[len(calls[0].Messages)-1].Content
			for _, s := range tt.contains {
				assert.Contains(t, user, s)
			}
		})
	}
}

func TestGeneratorPlaceholders(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("model unavailable")
	p := llmtest.New()
	for _, task := range []string{llm.TaskImpact, llm.TaskSpec, llm.TaskUI, llm.TaskTasks} {
		p.Fail(task, boom)
	}
	g := New(p, nil)

	impact, err := g.AssessImpact(ctx, feature, ImpactContext{})
	require.Error(t, err)
	assert.Equal(t, "model unavailable", impact.UserImpact.Error)
	assert.Equal(t, "model unavailable", impact.BusinessImpact.Error)
	assert.Equal(t, "model unavailable", impact.TechnicalConsiderations.Error)
	assert.Equal(t, []string{"model unavailable"}, impact.Risks)
	assert.Empty(t, impact.SuccessMetrics)

	spec, err := g.GenerateSpec(ctx, feature, impact)
	require.Error(t, err)
	assert.Equal(t, "model unavailable", spec.Overview.Error)
	assert.Empty(t, spec.UserStories)

	ui, err := g.GenerateUIProposals(ctx, spec)
	require.Error(t, err)
	assert.Equal(t, "model unavailable", ui.Error)
	assert.NotNil(t, ui.UIChanges)

	tasks, err := g.GenerateTasks(ctx, spec, ui)
	require.Error(t, err)
	assert.Equal(t, "Error", tasks.EpicName)
	assert.Equal(t, "Unknown", tasks.TotalEstimatedEffort)
	assert.Equal(t, "model unavailable", tasks.Error)
}

func TestSpecMarkdown(t *testing.T) {
	md := SpecMarkdown(&FeatureSpec{
		Overview:           SpecOverview{Title: "Export", ProblemStatement: "Manual copying"},
		UserStories:        []string{"As an analyst, I want CSV"},
		AcceptanceCriteria: []string{"Given a report, when exported, then a file downloads"},
		CustomerEvidence:   CustomerEvidence{Quotes: []string{"I copy by hand"}},
		SuccessMetrics:     []SuccessMetric{{Metric: "Tickets", Target: "-50%", Timeframe: "90 days"}},
	})

	assert.True(t, strings.HasPrefix(md, "# Export\n\n## Problem Statement\nManual copying\n\n## Solution Summary\nN/A\n\n"))
	assert.Contains(t, md, "- As an analyst, I want CSV\n")
	assert.Contains(t, md, "- [ ] Given a report")
	assert.Contains(t, md, "## Customer Evidence\n### Quotes\n> I copy by hand\n\n")
	assert.Contains(t, md, "- **Tickets**: -50% (90 days)\n")
	assert.NotContains(t, md, "## Dependencies")

	empty := SpecMarkdown(&FeatureSpec{})
	assert.True(t, strings.HasPrefix(empty, "# Feature Specification\n"))
	assert.NotContains(t, empty, "Customer Evidence")
}

func TestUIProposalsMarkdown(t *testing.T) {
	md := UIProposalsMarkdown(&UIProposals{
		UIChanges: []UIChange{{Screen: "Report", ChangeType: "modify", Description: "Add menu", Components: []string{"Menu", "Picker"}, MockupDescription: "A button"}},
		UserFlow:  []FlowStep{{Step: 1, Screen: "Report", Action: "Click", Outcome: "Opens"}},
		DataModelChanges: []DataModelChange{
			{Entity: "Schedule", ChangeType: "new_table", Description: "Stores", Fields: []string{"id", "cron"}},
			{Entity: "Report", ChangeType: "modify", Description: "Flag"},
		},
		DesignConsiderations: []string{"Keyboard access"},
	})

	assert.Contains(t, md, "### Report (modify)\nAdd menu\n\n**Components**: Menu, Picker\n\n**Mockup Description**:\nA button\n\n")
	assert.Contains(t, md, "1. **Report**\n   - Action: Click\n   - Outcome: Opens\n\n")
	assert.Contains(t, md, "**Fields**: id, cron\n")
	assert.Equal(t, 1, strings.Count(md, "**Fields**"))
	assert.True(t, strings.HasSuffix(md, "## Design Considerations\n\n- Keyboard access\n"))
}

func TestTasksMarkdown(t *testing.T) {
	md := TasksMarkdown(&TaskBreakdown{
		EpicName:             "Export",
		TotalEstimatedEffort: "20 hours",
		Tasks: []Task{
			{ID: "T-1", Category: "frontend", Title: "Menu", Priority: "high", EstimatedEffort: "4h", Dependencies: []string{"T-2"}},
			{ID: "T-2", Category: "backend", Title: "API", AcceptanceCriteria: []string{"Returns 202"}},
			{ID: "T-3", Title: "Docs"},
			{ID: "T-4", Category: "frontend", Title: "Picker"},
		},
		Milestones: []Milestone{{Name: "MVP", Description: "Usable", Tasks: []string{"T-1", "T-2"}}},
	})

	front := strings.Index(md, "## FRONTEND Tasks")
	back := strings.Index(md, "## BACKEND Tasks")
	other := strings.Index(md, "## OTHER Tasks")
	require.True(t, front >= 0 && back >= 0 && other >= 0, md)
	assert.Less(t, front, back)
	assert.Less(t, back, other)
	assert.Less(t, strings.Index(md, "T-4: Picker"), back, "grouped under first-seen category")

	assert.Contains(t, md, "**Total Estimated Effort**: 20 hours\n")
	assert.Contains(t, md, "**Priority**: high | **Effort**: 4h\n\n")
	assert.Contains(t, md, "**Dependencies**: T-2\n\n")
	assert.Contains(t, md, "**Acceptance Criteria**:\n- [ ] Returns 202\n\n")
	assert.Contains(t, md, "## Milestones\n\n### MVP\nUsable\n**Tasks**: T-1, T-2\n\n")

	assert.True(t, strings.HasPrefix(TasksMarkdown(&TaskBreakdown{}), "# Task Breakdown\n"))
}

func TestReportMarkdown(t *testing.T) {
	score := func(v float64) *float64 { return &v }
	var opps []analysis.Opportunity
	for i := 0; i < 8; i++ {
		opps = append(opps, analysis.Opportunity{Name: string(rune('A' + i)), RICEScore: score(float64(100 - i))})
	}
	top := opps[0]
	top.Description = "Best one"
	top.Confidence = analysis.ConfidenceHigh

	md := ReportMarkdown(Report{
		Query:         "What next?",
		TopFeature:    &top,
		Tasks:         &TaskBreakdown{EpicName: "A"},
		Opportunities: opps,
	})

	assert.Contains(t, md, "> **Query:** What next?")
	assert.Contains(t, md, "## A\n\nBest one\n\n- **Confidence:** high\n- **RICE Score:** 100\n")
	assert.Contains(t, md, "# Other Opportunities (7)")
	assert.Contains(t, md, "2. B (Score: 99)\n")
	assert.Contains(t, md, "6. F (Score: 95)\n")
	assert.NotContains(t, md, "7. G")
	assert.NotContains(t, md, "UI & Workflow Proposals")

	assert.Empty(t, ReportMarkdown(Report{}))
}
