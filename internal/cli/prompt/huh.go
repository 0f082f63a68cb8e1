package prompt

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
)

// HuhPrompter prompts on the terminal with a huh form.
type HuhPrompter struct {
	interactive bool
}

// NewHuhPrompter creates a prompter. interactive is false in CI and when
// stdin is not a terminal, in which case every prompt fails.
func NewHuhPrompter(interactive bool) *HuhPrompter {
	return &HuhPrompter{interactive: interactive}
}

// IsInteractive reports whether prompts can be displayed.
func (p *HuhPrompter) IsInteractive() bool { return p.interactive }

// PromptQuery asks for the query text and, when uploads exist, which of
// them to include.
func (p *HuhPrompter) PromptQuery(ctx context.Context, uploads []Choice) (Query, error) {
	if !p.interactive {
		return Query{}, errors.New("a query argument is required in non-interactive mode")
	}

	var q Query
	fields := []huh.Field{
		huh.NewText().
			Title("What do you want to know?").
			Description("Ask about priorities, customer problems, specs or task breakdowns").
			Placeholder(Examples[0]).
			CharLimit(MaxQueryLength).
			Validate(ValidateQuery).
			Value(&q.Text),
	}
	if len(uploads) > 0 {
		options := make([]huh.Option[string], 0, len(uploads))
		for _, u := range uploads {
			options = append(options, huh.NewOption(u.Label, u.Path))
		}
		fields = append(fields, huh.NewMultiSelect[string]().
			Title("Include uploaded documents").
			Options(options...).
			Value(&q.Files))
	}

	form := huh.NewForm(huh.NewGroup(fields...))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return Query{}, ErrAborted
		}
		return Query{}, err
	}
	q.Text = strings.TrimSpace(q.Text)
	return q, nil
}
