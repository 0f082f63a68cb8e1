// Package format renders command output for terminals and pipes.
package format

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/charmbracelet/glamour"
)

// maxMarkdownSize bounds rendered reports.
const maxMarkdownSize = 5 * 1024 * 1024

// ansiEscapeRegex matches ANSI escape sequences.
var ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripANSI removes ANSI escape sequences. Generated text passes through it
// before rendering so model output cannot drive the terminal.
func StripANSI(s string) string {
	return ansiEscapeRegex.ReplaceAllString(s, "")
}

// Markdown renders content with glamour when isTTY is set and returns it
// unchanged otherwise. Rendering failures fall back to the plain text.
func Markdown(content string, isTTY bool, wordWrap int) (string, error) {
	if len(content) > maxMarkdownSize {
		return "", fmt.Errorf("output size (%d bytes) exceeds maximum for markdown (%d bytes)", len(content), maxMarkdownSize)
	}
	content = StripANSI(content)
	if !isTTY {
		return content, nil
	}
	if wordWrap <= 0 {
		wordWrap = 100
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return content, nil
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content, nil
	}
	return rendered, nil
}

// JSON pretty-prints v with 2-space indentation.
func JSON(v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format JSON: %w", err)
	}
	return string(out), nil
}
