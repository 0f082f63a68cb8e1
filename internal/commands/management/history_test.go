package management

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/squash/internal/analysis"
	"github.com/tombee/squash/internal/commands/shared"
	"github.com/tombee/squash/internal/generation"
	"github.com/tombee/squash/internal/pipeline"
	"github.com/tombee/squash/internal/store"
	"github.com/tombee/squash/internal/store/memory"
)

func seed(t *testing.T) store.Store {
	t.Helper()
	s := memory.New()
	ctx := context.Background()
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	st := pipeline.NewState("run-completed", "What should we build next?", nil)
	st.QueryType = pipeline.QueryFeatureDiscovery
	st.TopFeature = &analysis.Opportunity{Name: "Bulk Data Export", Description: "Export everything"}
	st.FeatureSpec = &generation.FeatureSpec{}
	st.FeatureSpec.Overview.Title = "Bulk Data Export"
	st.Phase = pipeline.PhaseReviewed
	st.Completed = true
	st.StartedAt = started
	st.FinishedAt = started.Add(3 * time.Second)
	done, err := store.RunFromState(st)
	require.NoError(t, err)
	require.NoError(t, s.CreateRun(ctx, done))

	failed := &store.Run{
		ID:        "run-failed",
		Query:     "Why are customers churning?",
		Status:    store.StatusCompletedWithErrors,
		Error:     "collect: timeout",
		StartedAt: started.Add(time.Minute),
	}
	require.NoError(t, s.CreateRun(ctx, failed))
	return s
}

func TestHistoryList(t *testing.T) {
	s := seed(t)
	var out bytes.Buffer

	require.NoError(t, historyList(context.Background(), &out, s, store.RunFilter{}))
	assert.Contains(t, out.String(), "run-comp")
	assert.Contains(t, out.String(), "run-fail")
	assert.Contains(t, out.String(), "Bulk Data Export")

	out.Reset()
	require.NoError(t, historyList(context.Background(), &out, s, store.RunFilter{Status: store.StatusCompletedWithErrors}))
	assert.NotContains(t, out.String(), "run-comp")
	assert.Contains(t, out.String(), "run-fail")

	out.Reset()
	require.NoError(t, historyList(context.Background(), &out, memory.New(), store.RunFilter{}))
	assert.Equal(t, "No runs found\n", out.String())
}

func TestHistoryShow(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, historyShow(ctx, &out, s, "run-completed", "summary"))
	assert.Contains(t, out.String(), "Top feature: Bulk Data Export")
	assert.Contains(t, out.String(), "Finished:")

	out.Reset()
	require.NoError(t, historyShow(ctx, &out, s, "run-completed", "md"))
	assert.Contains(t, out.String(), "# Top Recommendation")
	assert.Contains(t, out.String(), "## Bulk Data Export")

	err := historyShow(ctx, &out, s, "run-failed", "md")
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))

	err = historyShow(ctx, &out, s, "missing", "summary")
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))
}

func TestHistoryDelete(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, historyDelete(ctx, &out, s, "run-failed"))
	assert.Equal(t, "Run run-failed deleted\n", out.String())

	err := historyDelete(ctx, &out, s, "run-failed")
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))
}

func TestHistoryCommand_UsesStore(t *testing.T) {
	s := seed(t)
	prev := openStore
	openStore = func(context.Context) (store.Store, func(), error) { return s, func() {}, nil }
	t.Cleanup(func() { openStore = prev })

	cmd := NewHistoryCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"list", "--failed"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "run-fail")
	assert.NotContains(t, out.String(), "run-comp")

	cmd.SetArgs([]string{"list", "--limit", "-1"})
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(cmd.Execute()))

	cmd.SetArgs([]string{"show", "run-completed", "--output", "yaml"})
	assert.ErrorContains(t, cmd.Execute(), "must be one of summary, md, markdown")
}

func TestShowResponse_JSON(t *testing.T) {
	run := &store.Run{ID: "r1", Status: store.StatusCompleted}
	data, err := json.Marshal(showResponse{JSONResponse: shared.NewJSONResponse("history show", true), Run: run})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"r1"`)
	assert.Contains(t, string(data), `"command":"history show"`)
}
