package ask

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/squash/internal/cli/prompt"
	"github.com/tombee/squash/internal/commands/shared"
	"github.com/tombee/squash/internal/commands/shared/sharedtest"
	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/store"
	"github.com/tombee/squash/internal/store/sqlite"
)

type harness struct {
	settings *config.Settings
	out      *bytes.Buffer
	errOut   *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		settings: sharedtest.Settings(t, nil),
		out:      &bytes.Buffer{},
		errOut:   &bytes.Buffer{},
	}
}

func (h *harness) options(query string) *options {
	return &options{
		query:    query,
		output:   "md",
		prompter: &prompt.MockPrompter{},
		out:      h.out,
		errOut:   h.errOut,
		app: shared.AppOptions{
			Settings:   h.settings,
			Registerer: prometheus.NewRegistry(),
			LogOutput:  &bytes.Buffer{},
		},
	}
}

func (h *harness) runs(t *testing.T) []*store.Run {
	t.Helper()
	db, err := sqlite.New(sqlite.Config{Path: h.settings.DBPath})
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	return runs
}

func TestRun_Markdown(t *testing.T) {
	h := newHarness(t)

	err := run(context.Background(), h.options("What should we build next?"))
	require.NoError(t, err)

	assert.Contains(t, h.out.String(), "# Top Recommendation")
	assert.Contains(t, h.out.String(), "Bulk Data Export")
	assert.Contains(t, h.errOut.String(), "tokens across")

	runs := h.runs(t)
	require.Len(t, runs, 1)
	assert.Equal(t, store.StatusCompleted, runs[0].Status)
	assert.Equal(t, "Bulk Data Export", runs[0].TopFeature)
}

func TestRun_JSON(t *testing.T) {
	h := newHarness(t)
	opts := h.options("What should we build next?")
	opts.output = "json"

	require.NoError(t, run(context.Background(), opts))

	var resp Response
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ask", resp.Command)
	assert.True(t, resp.Completed)
	require.NotNil(t, resp.TopFeature)
	assert.Equal(t, "Bulk Data Export", resp.TopFeature.Name)
	assert.Contains(t, resp.FeatureSpecMarkdown, "# Bulk Data Export")
	require.NotNil(t, resp.Usage)
	assert.Positive(t, resp.Usage.TotalRequests)
	assert.Empty(t, h.errOut.String(), "json output keeps stderr quiet")
}

func TestRun_NoHistory(t *testing.T) {
	h := newHarness(t)
	opts := h.options("What should we build next?")
	opts.noHistory = true

	require.NoError(t, run(context.Background(), opts))
	_, err := os.Stat(h.settings.DBPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_Timeline(t *testing.T) {
	h := newHarness(t)
	opts := h.options("What should we build next?")
	opts.timeline = true
	opts.noHistory = true

	require.NoError(t, run(context.Background(), opts))
	assert.Contains(t, h.out.String(), "Total:")
	assert.Contains(t, h.out.String(), "route")
	assert.Contains(t, h.out.String(), "Tokens:")
}

func TestRun_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*options)
	}{
		{"unknown output", func(o *options) { o.output = "yaml" }},
		{"missing file", func(o *options) { o.files = []string{"/does/not/exist.pdf"} }},
		{"unknown method", func(o *options) { o.method = "wsjf" }},
		{"no query without prompt", func(o *options) { o.query = ""; o.noPrompt = true }},
		{"no query non-interactive", func(o *options) { o.query = "" }},
		{"blank query", func(o *options) { o.query = "   " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			opts := h.options("What next?")
			tt.mutate(opts)

			err := run(context.Background(), opts)
			require.Error(t, err)
			code := shared.ExitCode(err)
			assert.Contains(t, []int{shared.ExitInvalidInput, shared.ExitConfigError}, code)
			assert.Empty(t, h.out.String())
		})
	}
}

func TestRun_PromptsForQuery(t *testing.T) {
	h := newHarness(t)
	notes := filepath.Join(h.settings.UploadDir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("Customers keep asking for CSV export."), 0o644))

	mock := &prompt.MockPrompter{
		Interactive: true,
		Answer:      prompt.Query{Text: "What should we build next?", Files: []string{notes}},
	}
	opts := h.options("")
	opts.prompter = mock

	require.NoError(t, run(context.Background(), opts))
	require.Len(t, mock.Offered, 1)
	require.Len(t, mock.Offered[0], 1)
	assert.Equal(t, "notes.txt", mock.Offered[0][0].Label)
	assert.Contains(t, h.out.String(), "Bulk Data Export")

	runs := h.runs(t)
	require.Len(t, runs, 1)
	assert.Equal(t, []string{notes}, runs[0].Files)
}

func TestRun_PromptAborted(t *testing.T) {
	h := newHarness(t)
	opts := h.options("")
	opts.prompter = &prompt.MockPrompter{Interactive: true, Err: prompt.ErrAborted}

	err := run(context.Background(), opts)
	assert.Equal(t, shared.ExitInterrupted, shared.ExitCode(err))
}

func TestRun_AnalyzeUsesEveryUpload(t *testing.T) {
	h := newHarness(t)
	for _, name := range []string{"a.txt", "b.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(h.settings.UploadDir, name), []byte("feedback"), 0o644))
	}
	opts := h.options(AnalyzeQuery)
	opts.allUploads = true

	require.NoError(t, run(context.Background(), opts))
	runs := h.runs(t)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].Files, 2)
	assert.Equal(t, AnalyzeQuery, runs[0].Query)
}

func TestResolveFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	files, err := resolveFiles([]string{filepath.Join(dir, "*.txt")})
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = resolveFiles([]string{dir})
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))

	files, err = resolveFiles(nil)
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestNewCommand_Flags(t *testing.T) {
	cmd := NewCommand()
	for _, name := range []string{"file", "method", "output", "timeline", "no-history", "no-prompt"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Nil(t, NewAnalyzeCommand().Flags().Lookup("no-prompt"))
}
