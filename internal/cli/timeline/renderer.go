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

// Package timeline renders the stages of a pipeline run as an ASCII
// timeline.
package timeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tombee/squash/internal/pipeline"
)

const (
	// MinWidth is the narrowest supported output width.
	MinWidth = 80
	// DefaultBarWidth is the default width for duration bars
	DefaultBarWidth = 40

	StatusIconOK    = "✓"
	StatusIconError = "✗"
)

// Span is the execution window of one stage.
type Span struct {
	Stage     string
	StartTime time.Time
	EndTime   time.Time
	Failed    bool
}

// Duration is the length of the span.
func (s Span) Duration() time.Duration { return s.EndTime.Sub(s.StartTime) }

// Recorder collects stage spans from engine events.
type Recorder struct {
	mu    sync.Mutex
	runID string
	open  map[string]time.Time
	spans []Span
	now   func() time.Time
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{open: make(map[string]time.Time), now: time.Now}
}

// Attach subscribes the recorder to stage events.
func (r *Recorder) Attach(events *pipeline.EventEmitter) {
	events.On(pipeline.EventStageStarted, r.handle)
	events.On(pipeline.EventStageCompleted, r.handle)
}

func (r *Recorder) handle(_ context.Context, ev *pipeline.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runID = ev.RunID
	switch ev.Type {
	case pipeline.EventStageStarted:
		r.open[ev.Stage] = r.now()
	case pipeline.EventStageCompleted:
		start, ok := r.open[ev.Stage]
		if !ok {
			return nil
		}
		delete(r.open, ev.Stage)
		status, _ := ev.Data["status"].(string)
		r.spans = append(r.spans, Span{
			Stage:     ev.Stage,
			StartTime: start,
			EndTime:   r.now(),
			Failed:    status == "error",
		})
	}
	return nil
}

// Spans returns the completed spans in completion order.
func (r *Recorder) Spans() []Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Span(nil), r.spans...)
}

// RunID is the run the last event belonged to.
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// Renderer renders ASCII timelines.
type Renderer struct {
	Width    int
	BarWidth int
}

// NewRendererWidth creates a renderer for a fixed width.
func NewRendererWidth(width int) (*Renderer, error) {
	if width < MinWidth {
		return nil, fmt.Errorf("terminal width %d is too narrow (minimum %d columns)", width, MinWidth)
	}
	// "│ " + name(12) + " " + bar + "  " + duration(6) + "  " + icon + " │"
	barWidth := min(width-30, 60)
	barWidth = max(barWidth, DefaultBarWidth)
	return &Renderer{Width: width, BarWidth: barWidth}, nil
}

// Render draws spans under a header naming the run. totalTokens, when
// positive, is printed below the box.
func (r *Renderer) Render(runID string, spans []Span, totalTokens int) (string, error) {
	if len(spans) == 0 {
		return "", fmt.Errorf("no stages to render")
	}

	start, end := bounds(spans)
	total := end.Sub(start)

	var sb strings.Builder
	inner := r.Width - 2
	border := strings.Repeat("─", inner)
	sb.WriteString("┌" + border + "┐\n")
	title := fmt.Sprintf(" Run %s", runID)
	right := fmt.Sprintf("Total: %s ", formatDuration(total))
	pad := max(inner-len(title)-len(right), 1)
	sb.WriteString("│" + truncate(title, inner-len(right)-1) + strings.Repeat(" ", pad) + right + "│\n")
	sb.WriteString("├" + border + "┤\n")
	for _, span := range spans {
		sb.WriteString(r.renderSpan(span, start, total))
	}
	sb.WriteString("└" + border + "┘\n")
	if totalTokens > 0 {
		fmt.Fprintf(&sb, "\nTokens: %d\n", totalTokens)
	}
	return sb.String(), nil
}

func bounds(spans []Span) (time.Time, time.Time) {
	start, end := spans[0].StartTime, spans[0].EndTime
	for _, s := range spans[1:] {
		if s.StartTime.Before(start) {
			start = s.StartTime
		}
		if s.EndTime.After(end) {
			end = s.EndTime
		}
	}
	return start, end
}

func (r *Renderer) renderSpan(span Span, start time.Time, total time.Duration) string {
	startPos, barLength := 0, r.BarWidth
	if total > 0 {
		startPos = int(float64(span.StartTime.Sub(start)) / float64(total) * float64(r.BarWidth))
		barLength = int(float64(span.Duration()) / float64(total) * float64(r.BarWidth))
	}
	barLength = max(barLength, 1)
	startPos = min(startPos, r.BarWidth-1)
	if startPos+barLength > r.BarWidth {
		barLength = r.BarWidth - startPos
	}

	bar := make([]rune, r.BarWidth)
	for i := range bar {
		if i >= startPos && i < startPos+barLength {
			bar[i] = '█'
		} else {
			bar[i] = '░'
		}
	}

	icon := StatusIconOK
	if span.Failed {
		icon = StatusIconError
	}
	line := fmt.Sprintf("│ %-12s %s  %6s  %s", truncate(span.Stage, 12), string(bar), formatDuration(span.Duration()), icon)
	pad := max(r.Width-1-runeLen(line), 0)
	return line + strings.Repeat(" ", pad) + "│\n"
}

func runeLen(s string) int { return len([]rune(s)) }

// truncate shortens a string to maxLen with ellipsis if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:max(maxLen, 0)]
	}
	return s[:maxLen-3] + "..."
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
}
