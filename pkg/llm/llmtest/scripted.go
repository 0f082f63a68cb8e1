// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"
	"time"

	"github.com/tombee/squash/pkg/llm"
)

// Provider answers by task from fixed responses and records every request.
type Provider struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []llm.CompletionRequest

	// Fallback is returned for tasks with no scripted response.
	Fallback string
}

// New returns a provider with no scripted answers.
func New() *Provider {
	return &Provider{responses: map[string]string{}, errs: map[string]error{}, Fallback: "{}"}
}

// On scripts the content returned for task.
func (p *Provider) On(task, content string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[task] = content
	delete(p.errs, task)
	return p
}

// Fail scripts an error for task.
func (p *Provider) Fail(task string, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[task] = err
	return p
}

// Name returns "scripted".
func (p *Provider) Name() string { return "scripted" }

// Complete returns the scripted content or error for req.Task().
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)

	task := req.Task()
	if err, ok := p.errs[task]; ok {
		return nil, err
	}
	content, ok := p.responses[task]
	if !ok {
		content = p.Fallback
	}
	return &llm.CompletionResponse{
		Content:      content,
		FinishReason: llm.FinishReasonStop,
		Usage:        llm.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		Model:        "scripted",
		RequestID:    task,
		Created:      time.Now(),
	}, nil
}

// Calls returns the recorded requests.
func (p *Provider) Calls() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.CompletionRequest(nil), p.calls...)
}

// CallsFor returns the recorded requests for task.
func (p *Provider) CallsFor(task string) []llm.CompletionRequest {
	var out []llm.CompletionRequest
	for _, c := range p.Calls() {
		if c.Task() == task {
			out = append(out, c)
		}
	}
	return out
}
