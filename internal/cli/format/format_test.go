package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		isTTY    bool
		contains string
		exact    bool
	}{
		{name: "plain passthrough", content: "# Bulk Export\n\nSome text", contains: "# Bulk Export\n\nSome text", exact: true},
		{name: "rendered heading", content: "# Bulk Export\n\nSome text", isTTY: true, contains: "Bulk Export"},
		{name: "empty", content: "", isTTY: true},
		{name: "escape sequences stripped", content: "score \x1b[31m9.5\x1b[0m", contains: "score 9.5", exact: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Markdown(tt.content, tt.isTTY, 80)
			require.NoError(t, err)
			if tt.exact {
				assert.Equal(t, tt.contains, got)
			} else {
				assert.Contains(t, got, tt.contains)
			}
		})
	}
}

func TestMarkdown_TooLarge(t *testing.T) {
	_, err := Markdown(strings.Repeat("x", maxMarkdownSize+1), false, 0)
	assert.ErrorContains(t, err, "exceeds maximum")
}

func TestJSON(t *testing.T) {
	got, err := JSON(map[string]any{"feature": "Bulk Data Export", "score": 12.5})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"feature\": \"Bulk Data Export\",\n  \"score\": 12.5\n}", got)

	_, err = JSON(map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestIsTTY_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, IsTTY())

	t.Setenv("NO_COLOR", "")
	t.Setenv("TERM", "dumb")
	assert.False(t, IsTTY())
}
