package generation

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tombee/squash/internal/analysis"
)

var upper = cases.Upper(language.Und)

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// SpecMarkdown renders a feature spec.
func SpecMarkdown(spec *FeatureSpec) string {
	var b strings.Builder
	o := spec.Overview
	fmt.Fprintf(&b, "# %s\n\n", orDefault(o.Title, "Feature Specification"))
	fmt.Fprintf(&b, "## Problem Statement\n%s\n\n", orDefault(o.ProblemStatement, "N/A"))
	fmt.Fprintf(&b, "## Solution Summary\n%s\n\n", orDefault(o.SolutionSummary, "N/A"))

	b.WriteString("## User Stories\n")
	for _, s := range spec.UserStories {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	b.WriteString("\n")

	b.WriteString("## Acceptance Criteria\n")
	for _, c := range spec.AcceptanceCriteria {
		fmt.Fprintf(&b, "- [ ] %s\n", c)
	}
	b.WriteString("\n")

	if quotes := spec.CustomerEvidence.Quotes; len(quotes) > 0 {
		b.WriteString("## Customer Evidence\n### Quotes\n")
		for _, q := range quotes {
			fmt.Fprintf(&b, "> %s\n\n", q)
		}
	}

	b.WriteString("## Success Metrics\n")
	for _, m := range spec.SuccessMetrics {
		fmt.Fprintf(&b, "- **%s**: %s (%s)\n", m.Metric, m.Target, m.Timeframe)
	}
	b.WriteString("\n")

	if len(spec.Dependencies) > 0 {
		b.WriteString("## Dependencies\n")
		for _, d := range spec.Dependencies {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// UIProposalsMarkdown renders UI proposals.
func UIProposalsMarkdown(p *UIProposals) string {
	var b strings.Builder
	b.WriteString("# UI & Workflow Proposals\n\n")

	b.WriteString("## UI Changes\n\n")
	for _, c := range p.UIChanges {
		fmt.Fprintf(&b, "### %s (%s)\n", c.Screen, c.ChangeType)
		fmt.Fprintf(&b, "%s\n\n", c.Description)
		fmt.Fprintf(&b, "**Components**: %s\n\n", strings.Join(c.Components, ", "))
		fmt.Fprintf(&b, "**Mockup Description**:\n%s\n\n", c.MockupDescription)
	}

	b.WriteString("## User Flow\n\n")
	for _, s := range p.UserFlow {
		fmt.Fprintf(&b, "%d. **%s**\n", s.Step, s.Screen)
		fmt.Fprintf(&b, "   - Action: %s\n", s.Action)
		fmt.Fprintf(&b, "   - Outcome: %s\n\n", s.Outcome)
	}

	b.WriteString("## Data Model Changes\n\n")
	for _, c := range p.DataModelChanges {
		fmt.Fprintf(&b, "### %s (%s)\n", c.Entity, c.ChangeType)
		fmt.Fprintf(&b, "%s\n", c.Description)
		if len(c.Fields) > 0 {
			fmt.Fprintf(&b, "**Fields**: %s\n", strings.Join(c.Fields, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Design Considerations\n\n")
	for _, c := range p.DesignConsiderations {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	return b.String()
}

// TasksMarkdown renders a task breakdown with tasks grouped by category in
// first-seen order, then the milestones.
func TasksMarkdown(t *TaskBreakdown) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", orDefault(t.EpicName, "Task Breakdown"))
	fmt.Fprintf(&b, "**Total Estimated Effort**: %s\n\n", t.TotalEstimatedEffort)

	var order []string
	groups := map[string][]Task{}
	for _, task := range t.Tasks {
		cat := orDefault(task.Category, "other")
		if _, ok := groups[cat]; !ok {
			order = append(order, cat)
		}
		groups[cat] = append(groups[cat], task)
	}

	for _, cat := range order {
		fmt.Fprintf(&b, "## %s Tasks\n\n", upper.String(cat))
		for _, task := range groups[cat] {
			fmt.Fprintf(&b, "### %s: %s\n", task.ID, task.Title)
			fmt.Fprintf(&b, "**Priority**: %s | **Effort**: %s\n\n", task.Priority, task.EstimatedEffort)
			fmt.Fprintf(&b, "%s\n\n", task.Description)
			if len(task.Dependencies) > 0 {
				fmt.Fprintf(&b, "**Dependencies**: %s\n\n", strings.Join(task.Dependencies, ", "))
			}
			if len(task.AcceptanceCriteria) > 0 {
				b.WriteString("**Acceptance Criteria**:\n")
				for _, c := range task.AcceptanceCriteria {
					fmt.Fprintf(&b, "- [ ] %s\n", c)
				}
				b.WriteString("\n")
			}
		}
	}

	if len(t.Milestones) > 0 {
		b.WriteString("## Milestones\n\n")
		for _, m := range t.Milestones {
			fmt.Fprintf(&b, "### %s\n", m.Name)
			fmt.Fprintf(&b, "%s\n", m.Description)
			fmt.Fprintf(&b, "**Tasks**: %s\n\n", strings.Join(m.Tasks, ", "))
		}
	}
	return b.String()
}

// Report is the full output of one run, for rendering.
type Report struct {
	Query         string
	TopFeature    *analysis.Opportunity
	Spec          *FeatureSpec
	UIProposals   *UIProposals
	Tasks         *TaskBreakdown
	Opportunities []analysis.Opportunity
	Error         string
}

const otherOpportunities = 5

// ReportMarkdown renders every artifact of a run in one document: the top
// recommendation, the three deliverables and up to five runner-ups.
func ReportMarkdown(r Report) string {
	var b strings.Builder
	if r.Query != "" {
		fmt.Fprintf(&b, "> **Query:** %s\n\n", r.Query)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "> **Warning:** %s\n\n", r.Error)
	}

	if f := r.TopFeature; f != nil {
		b.WriteString("# Top Recommendation\n\n")
		fmt.Fprintf(&b, "## %s\n\n", orDefault(f.Name, "Feature"))
		fmt.Fprintf(&b, "%s\n\n", orDefault(f.Description, "N/A"))
		fmt.Fprintf(&b, "- **Confidence:** %s\n", orDefault(f.Confidence, "unknown"))
		if f.RICEScore != nil {
			fmt.Fprintf(&b, "- **RICE Score:** %g\n", *f.RICEScore)
		}
		if f.ICEScore != nil {
			fmt.Fprintf(&b, "- **ICE Score:** %g\n", *f.ICEScore)
		}
		if f.CustomScore != nil {
			fmt.Fprintf(&b, "- **Score:** %g\n", *f.CustomScore)
		}
		b.WriteString("\n")
	}
	if r.Spec != nil {
		b.WriteString(SpecMarkdown(r.Spec))
		b.WriteString("\n")
	}
	if r.UIProposals != nil {
		b.WriteString(UIProposalsMarkdown(r.UIProposals))
		b.WriteString("\n")
	}
	if r.Tasks != nil {
		b.WriteString(TasksMarkdown(r.Tasks))
		b.WriteString("\n")
	}

	if len(r.Opportunities) > 1 {
		others := r.Opportunities[1:]
		fmt.Fprintf(&b, "# Other Opportunities (%d)\n\n", len(others))
		if len(others) > otherOpportunities {
			others = others[:otherOpportunities]
		}
		for i, o := range others {
			fmt.Fprintf(&b, "%d. %s (Score: %g)\n", i+2, o.Name, o.Score())
		}
	}
	return b.String()
}
