package generation

import (
	"context"

	"github.com/tombee/squash/pkg/llm"
)

const tasksPrompt = `You are a tech lead breaking down a feature into development tasks.

Create a comprehensive task breakdown with:
1. Backend tasks (API, database, logic)
2. Frontend tasks (UI components, pages)
3. Testing tasks (unit, integration, E2E)
4. DevOps tasks (deployment, monitoring)

For each task:
- Clear, actionable description
- Estimated effort (hours or story points)
- Dependencies (what must be done first)
- Priority (high/medium/low)

Format as JSON:
{
  "epic_name": "Feature name",
  "total_estimated_effort": "X hours or Y points",
  "tasks": [
    {
      "id": "TASK-1",
      "category": "backend/frontend/testing/devops",
      "title": "Task title",
      "description": "Detailed description",
      "estimated_effort": "X hours",
      "priority": "high/medium/low",
      "dependencies": ["TASK-0"],
      "acceptance_criteria": ["criteria1", "criteria2"]
    }
  ],
  "milestones": [
    {
      "name": "Milestone name",
      "tasks": ["TASK-1", "TASK-2"],
      "description": "What's achieved"
    }
  ]
}`

// TaskBreakdown is the development plan for a feature.
type TaskBreakdown struct {
	EpicName             string      `json:"epic_name"`
	TotalEstimatedEffort string      `json:"total_estimated_effort"`
	Tasks                []Task      `json:"tasks"`
	Milestones           []Milestone `json:"milestones"`
	Error                string      `json:"error,omitempty"`
}

type Task struct {
	ID                 string   `json:"id"`
	Category           string   `json:"category"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	EstimatedEffort    string   `json:"estimated_effort"`
	Priority           string   `json:"priority"`
	Dependencies       []string `json:"dependencies"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
}

type Milestone struct {
	Name        string   `json:"name"`
	Tasks       []string `json:"tasks"`
	Description string   `json:"description"`
}

// GenerateTasks breaks spec and its UI proposals into development tasks.
func (g *Generator) GenerateTasks(ctx context.Context, spec *FeatureSpec, ui *UIProposals) (*TaskBreakdown, error) {
	g.logger.Info("generating task breakdown")

	var b TaskBreakdown
	err := g.complete(ctx, llm.TaskTasks, tasksPrompt, tasksTemperature, []section{
		{"Feature Spec", spec},
		{"UI Proposals", ui},
	}, &b)
	if err != nil {
		g.logger.Error("error generating tasks", "error", err)
		return &TaskBreakdown{
			EpicName:             "Error",
			TotalEstimatedEffort: "Unknown",
			Tasks:                []Task{},
			Milestones:           []Milestone{},
			Error:                err.Error(),
		}, err
	}
	g.logger.Info("generated tasks", "count", len(b.Tasks))
	return &b, nil
}
