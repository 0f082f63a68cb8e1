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

package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// UsageRecord tracks token usage for a single LLM request.
type UsageRecord struct {
	// RequestID uniquely identifies the provider request.
	RequestID string

	// Task is the pipeline step that made this request.
	Task string

	// Provider is the name of the provider that handled the request.
	Provider string

	// Model is the model ID used for the request.
	Model string

	// Timestamp is when the request was made.
	Timestamp time.Time

	// Duration is how long the request took.
	Duration time.Duration

	Usage TokenUsage
}

// UsageTracker tracks LLM token usage.
type UsageTracker struct {
	mu      sync.RWMutex
	records []UsageRecord
}

// NewUsageTracker creates a new usage tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{records: make([]UsageRecord, 0)}
}

// Track records token usage for an LLM request.
func (t *UsageTracker) Track(record UsageRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, record)
}

// GetRecords returns all usage records.
func (t *UsageTracker) GetRecords() []UsageRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	records := make([]UsageRecord, len(t.records))
	copy(records, t.records)
	return records
}

// AggregateByTask calculates total usage per pipeline step.
func (t *UsageTracker) AggregateByTask() map[string]UsageAggregate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	aggregates := make(map[string]UsageAggregate)
	for _, record := range t.records {
		agg := aggregates[record.Task]
		agg.add(record.Usage)
		aggregates[record.Task] = agg
	}
	return aggregates
}

// Total sums every record.
func (t *UsageTracker) Total() UsageAggregate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var agg UsageAggregate
	for _, record := range t.records {
		agg.add(record.Usage)
	}
	return agg
}

// Clear removes all usage records.
func (t *UsageTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = make([]UsageRecord, 0)
}

// UsageAggregate contains aggregated token usage statistics.
type UsageAggregate struct {
	TotalRequests     int
	TotalTokens       int
	TotalInputTokens  int
	TotalOutputTokens int
}

func (a *UsageAggregate) add(u TokenUsage) {
	a.TotalRequests++
	a.TotalTokens += u.TotalTokens
	a.TotalInputTokens += u.InputTokens
	a.TotalOutputTokens += u.OutputTokens
}

// FormatTokens formats a token count for display.
func FormatTokens(tokens int) string {
	if tokens >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(tokens)/1_000_000)
	}
	if tokens >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(tokens)/1_000)
	}
	return fmt.Sprintf("%d", tokens)
}

// TrackingProvider records the usage of every successful completion.
type TrackingProvider struct {
	provider Provider
	tracker  *UsageTracker
	now      func() time.Time
}

// NewTrackingProvider wraps provider so usage lands in tracker.
func NewTrackingProvider(provider Provider, tracker *UsageTracker) *TrackingProvider {
	return &TrackingProvider{provider: provider, tracker: tracker, now: time.Now}
}

// Name returns the wrapped provider's name.
func (p *TrackingProvider) Name() string { return p.provider.Name() }

// Complete forwards req and tracks the response usage.
func (p *TrackingProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := p.now()
	resp, err := p.provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	p.tracker.Track(UsageRecord{
		RequestID: resp.RequestID,
		Task:      req.Task(),
		Provider:  p.provider.Name(),
		Model:     resp.Model,
		Timestamp: start,
		Duration:  p.now().Sub(start),
		Usage:     resp.Usage,
	})
	return resp, nil
}
