// Package generation derives the deliverables for the top opportunity:
// an impact assessment, a feature spec, UI proposals and a task breakdown,
// plus their markdown renderings.
package generation

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/tombee/squash/internal/log"
	"github.com/tombee/squash/pkg/llm"
)

// Sampling temperatures per artifact.
const (
	impactTemperature = 0.5
	specTemperature   = 0.6
	uiTemperature     = 0.7
	tasksTemperature  = 0.4
)

// Generator asks the model for each artifact. Every method returns the
// artifact's error-shaped placeholder together with the error on failure.
type Generator struct {
	provider llm.Provider
	logger   *slog.Logger
}

// New creates a generator backed by provider.
func New(provider llm.Provider, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{provider: provider, logger: logger}
}

// section renders one labelled JSON block of a user prompt.
type section struct {
	label string
	value any
}

func (g *Generator) complete(ctx context.Context, task, system string, temp float64, sections []section, out any) error {
	var user string
	for i, s := range sections {
		data, err := json.MarshalIndent(s.value, "", "  ")
		if err != nil {
			return err
		}
		if i > 0 {
			user += "\n\n"
		}
		user += s.label + ":\n" + string(data)
	}
	log.Trace(g.logger, "generation prompt", slog.String("task", task), slog.Int("prompt_bytes", len(user)))
	return llm.CompleteJSON(ctx, g.provider, llm.Prompt(task, system, user, temp), out)
}
