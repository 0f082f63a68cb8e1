package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tombee/squash/pkg/errors"
)

// ExtractJSON strips a ```json or ``` fence from model output. Text without
// a fence is returned trimmed.
func ExtractJSON(content string) string {
	if _, after, ok := strings.Cut(content, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(content, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(content)
}

// DecodeJSON extracts the JSON payload of content into v.
func DecodeJSON(content string, v any) error {
	if err := json.Unmarshal([]byte(ExtractJSON(content)), v); err != nil {
		return errors.Wrap(err, "parsing model output")
	}
	return nil
}

// CompleteJSON sends req and decodes the JSON payload of the answer into v.
func CompleteJSON(ctx context.Context, p Provider, req CompletionRequest, v any) error {
	text, err := Text(ctx, p, req)
	if err != nil {
		return err
	}
	return DecodeJSON(text, v)
}
