// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/squash/internal/store"
	"github.com/tombee/squash/pkg/errors"
)

func createTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(Config{Path: dbPath, WAL: true})
	require.NoError(t, err)
	return s, dbPath
}

func TestStore_CreateAndGetRun(t *testing.T) {
	s, _ := createTestStore(t)
	defer s.Close()

	ctx := context.Background()
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &store.Run{
		ID:        "run-1",
		Query:     "What should we build next?",
		Status:    store.StatusRunning,
		Files:     []string{"uploads/interview.txt"},
		StartedAt: started,
	}
	require.NoError(t, s.CreateRun(ctx, run))
	assert.False(t, run.CreatedAt.IsZero())

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "What should we build next?", got.Query)
	assert.Equal(t, store.StatusRunning, got.Status)
	assert.Equal(t, []string{"uploads/interview.txt"}, got.Files)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Nil(t, got.FinishedAt)
	assert.Empty(t, got.Result)
	assert.Empty(t, got.QueryType)
}

func TestStore_GetRunNotFound(t *testing.T) {
	s, _ := createTestStore(t)
	defer s.Close()

	_, err := s.GetRun(context.Background(), "missing")
	var nf *errors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "run", nf.Resource)
	assert.Equal(t, "missing", nf.ID)
}

func TestStore_UpdateRun(t *testing.T) {
	s, _ := createTestStore(t)
	defer s.Close()

	ctx := context.Background()
	run := &store.Run{ID: "run-2", Query: "q", Status: store.StatusRunning, StartedAt: time.Now()}
	require.NoError(t, s.CreateRun(ctx, run))

	finished := time.Now()
	run.Status = store.StatusCompletedWithErrors
	run.QueryType = "analysis"
	run.Stage = "review"
	run.TopFeature = "Bulk Data Export"
	run.Error = "stage collect failed: boom"
	run.Result = json.RawMessage(`{"run_id":"run-2","completed":true}`)
	run.FinishedAt = &finished
	require.NoError(t, s.UpdateRun(ctx, run))

	got, err := s.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompletedWithErrors, got.Status)
	assert.Equal(t, "analysis", got.QueryType)
	assert.Equal(t, "review", got.Stage)
	assert.Equal(t, "Bulk Data Export", got.TopFeature)
	assert.Equal(t, "stage collect failed: boom", got.Error)
	assert.JSONEq(t, `{"run_id":"run-2","completed":true}`, string(got.Result))
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))

	missing := &store.Run{ID: "nope", Query: "q", Status: store.StatusRunning}
	var nf *errors.NotFoundError
	assert.ErrorAs(t, s.UpdateRun(ctx, missing), &nf)
}

func TestStore_ListRuns(t *testing.T) {
	s, _ := createTestStore(t)
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		status := store.StatusCompleted
		if i%2 == 1 {
			status = store.StatusCompletedWithErrors
		}
		require.NoError(t, s.CreateRun(ctx, &store.Run{
			ID:        fmt.Sprintf("run-%d", i),
			Query:     "q",
			Status:    status,
			StartedAt: time.Now(),
		}))
	}

	tests := []struct {
		name   string
		filter store.RunFilter
		want   []string
	}{
		{name: "all newest first", filter: store.RunFilter{}, want: []string{"run-4", "run-3", "run-2", "run-1", "run-0"}},
		{name: "by status", filter: store.RunFilter{Status: store.StatusCompletedWithErrors}, want: []string{"run-3", "run-1"}},
		{name: "limit", filter: store.RunFilter{Limit: 2}, want: []string{"run-4", "run-3"}},
		{name: "limit and offset", filter: store.RunFilter{Limit: 2, Offset: 2}, want: []string{"run-2", "run-1"}},
		{name: "offset only", filter: store.RunFilter{Offset: 3}, want: []string{"run-1", "run-0"}},
		{name: "no match", filter: store.RunFilter{Status: store.StatusRunning}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.ListRuns(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(runs))
			for _, r := range runs {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_DeleteRun(t *testing.T) {
	s, _ := createTestStore(t)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.CreateRun(ctx, &store.Run{ID: "run-d", Query: "q", Status: store.StatusCompleted}))
	require.NoError(t, s.DeleteRun(ctx, "run-d"))

	_, err := s.GetRun(ctx, "run-d")
	var nf *errors.NotFoundError
	assert.ErrorAs(t, err, &nf)
	assert.ErrorAs(t, s.DeleteRun(ctx, "run-d"), &nf)
}

func TestStore_Persistence(t *testing.T) {
	s, dbPath := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateRun(ctx, &store.Run{ID: "run-p", Query: "persisted", Status: store.StatusCompleted}))
	require.NoError(t, s.Close())

	reopened, err := New(Config{Path: dbPath})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, "run-p")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Query)
}

func TestStore_InMemory(t *testing.T) {
	s, err := New(Config{Path: ":memory:"})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.CreateRun(ctx, &store.Run{ID: "m", Query: "q", Status: store.StatusRunning}))
	runs, err := s.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
