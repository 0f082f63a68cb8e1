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

package timeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/squash/internal/pipeline"
)

func TestRecorder_CollectsStageSpans(t *testing.T) {
	events := pipeline.NewEventEmitter(false)
	rec := NewRecorder()
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time {
		clock = clock.Add(100 * time.Millisecond)
		return clock
	}
	rec.Attach(events)

	ctx := context.Background()
	for _, ev := range []*pipeline.Event{
		{Type: pipeline.EventStageStarted, RunID: "run-1", Stage: pipeline.StageRoute},
		{Type: pipeline.EventStageCompleted, RunID: "run-1", Stage: pipeline.StageRoute, Data: map[string]any{"status": "ok"}},
		{Type: pipeline.EventStageStarted, RunID: "run-1", Stage: pipeline.StageAnalyze},
		{Type: pipeline.EventStageCompleted, RunID: "run-1", Stage: pipeline.StageAnalyze, Data: map[string]any{"status": "error"}},
		// completion without a start is ignored
		{Type: pipeline.EventStageCompleted, RunID: "run-1", Stage: pipeline.StageReview},
	} {
		require.NoError(t, events.Emit(ctx, ev))
	}

	spans := rec.Spans()
	require.Len(t, spans, 2)
	assert.Equal(t, pipeline.StageRoute, spans[0].Stage)
	assert.False(t, spans[0].Failed)
	assert.Equal(t, 100*time.Millisecond, spans[0].Duration())
	assert.True(t, spans[1].Failed)
	assert.Equal(t, "run-1", rec.RunID())
}

func TestRenderer_Render(t *testing.T) {
	r, err := NewRendererWidth(100)
	require.NoError(t, err)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	spans := []Span{
		{Stage: "route", StartTime: base, EndTime: base.Add(200 * time.Millisecond)},
		{Stage: "collect", StartTime: base.Add(200 * time.Millisecond), EndTime: base.Add(1500 * time.Millisecond)},
		{Stage: "analyze", StartTime: base.Add(1500 * time.Millisecond), EndTime: base.Add(2 * time.Second), Failed: true},
	}
	out, err := r.Render("abc-123", spans, 4200)
	require.NoError(t, err)

	assert.Contains(t, out, "Run abc-123")
	assert.Contains(t, out, "Total: 2.0s")
	assert.Contains(t, out, "collect")
	assert.Contains(t, out, "1.3s")
	assert.Contains(t, out, StatusIconError)
	assert.Contains(t, out, "Tokens: 4200")

	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if strings.HasPrefix(line, "│") || strings.HasPrefix(line, "┌") {
			assert.Equal(t, 100, runeLen(line), "line %q", line)
		}
	}
}

func TestRenderer_Errors(t *testing.T) {
	_, err := NewRendererWidth(40)
	assert.Error(t, err)

	r, err := NewRendererWidth(80)
	require.NoError(t, err)
	_, err = r.Render("run", nil, 0)
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Microsecond, "500µs"},
		{250 * time.Millisecond, "250ms"},
		{2500 * time.Millisecond, "2.5s"},
		{90 * time.Second, "1.5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}
