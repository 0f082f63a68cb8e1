package generation

import (
	"context"

	"github.com/tombee/squash/pkg/llm"
)

const uiPrompt = `You are a UX designer creating UI proposals for a feature.

Based on the feature spec, propose:
1. UI changes (new screens, components, modifications)
2. User flow (step-by-step how users interact)
3. Data model changes (new fields, relationships)
4. Design considerations (accessibility, responsiveness, etc.)

Format as JSON:
{
  "ui_changes": [
    {
      "screen": "Screen name",
      "change_type": "new/modify/remove",
      "description": "What changes",
      "components": ["component1", "component2"],
      "mockup_description": "Detailed description of UI"
    }
  ],
  "user_flow": [
    {
      "step": 1,
      "screen": "Screen name",
      "action": "What user does",
      "outcome": "What happens"
    }
  ],
  "data_model_changes": [
    {
      "entity": "Entity name",
      "change_type": "new_field/new_table/modify",
      "description": "What changes",
      "fields": ["field1", "field2"]
    }
  ],
  "design_considerations": [
    "Consideration 1",
    "Consideration 2"
  ]
}`

// UIProposals are the screen, flow and data model changes for a feature.
type UIProposals struct {
	UIChanges            []UIChange        `json:"ui_changes"`
	UserFlow             []FlowStep        `json:"user_flow"`
	DataModelChanges     []DataModelChange `json:"data_model_changes"`
	DesignConsiderations []string          `json:"design_considerations"`
	Error                string            `json:"error,omitempty"`
}

type UIChange struct {
	Screen            string   `json:"screen"`
	ChangeType        string   `json:"change_type"`
	Description       string   `json:"description"`
	Components        []string `json:"components"`
	MockupDescription string   `json:"mockup_description"`
}

type FlowStep struct {
	Step    int    `json:"step"`
	Screen  string `json:"screen"`
	Action  string `json:"action"`
	Outcome string `json:"outcome"`
}

type DataModelChange struct {
	Entity      string   `json:"entity"`
	ChangeType  string   `json:"change_type"`
	Description string   `json:"description"`
	Fields      []string `json:"fields,omitempty"`
}

// GenerateUIProposals proposes UI and workflow changes for spec.
func (g *Generator) GenerateUIProposals(ctx context.Context, spec *FeatureSpec) (*UIProposals, error) {
	g.logger.Info("generating UI proposals")

	var p UIProposals
	err := g.complete(ctx, llm.TaskUI, uiPrompt, uiTemperature, []section{
		{"Feature Spec", spec},
	}, &p)
	if err != nil {
		g.logger.Error("error generating UI proposals", "error", err)
		return &UIProposals{
			UIChanges:            []UIChange{},
			UserFlow:             []FlowStep{},
			DataModelChanges:     []DataModelChange{},
			DesignConsiderations: []string{},
			Error:                err.Error(),
		}, err
	}
	return &p, nil
}
