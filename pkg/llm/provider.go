// Package llm provides the completion abstraction used by every stage that
// asks a model for text: routing, interview extraction, opportunity
// analysis, impact assessment and artifact generation.
package llm

import (
	"context"
	"time"
)

// Provider defines the interface that all LLM providers must implement.
type Provider interface {
	// Name returns the unique identifier for this provider (e.g., "anthropic", "gemini").
	Name() string

	// Complete sends a synchronous completion request and returns the full response.
	// This method blocks until the LLM response is complete.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest contains all parameters for an LLM completion request.
type CompletionRequest struct {
	// Messages is the conversation history including the current prompt.
	Messages []Message

	// Model specifies which model to use. Empty selects the provider default.
	Model string

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature *float64

	// MaxTokens limits the response length. If nil, uses provider default.
	MaxTokens *int

	// Metadata carries request tracking information. The "task" key names
	// the pipeline step issuing the request.
	Metadata map[string]string
}

// Task returns the "task" metadata value.
func (r CompletionRequest) Task() string {
	return r.Metadata[MetadataTask]
}

// MetadataTask is the metadata key naming the requesting step.
const MetadataTask = "task"

// Task names carried in request metadata.
const (
	TaskRoute     = "route"
	TaskInterview = "interview"
	TaskAnalyze   = "analyze"
	TaskImpact    = "impact"
	TaskSpec      = "spec"
	TaskUI        = "ui"
	TaskTasks     = "tasks"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    MessageRole
	Content string
}

// MessageRole identifies the sender of a message.
type MessageRole string

const (
	// MessageRoleSystem indicates a system message (context, instructions).
	MessageRoleSystem MessageRole = "system"

	// MessageRoleUser indicates a message from the user.
	MessageRoleUser MessageRole = "user"

	// MessageRoleAssistant indicates a message from the LLM.
	MessageRoleAssistant MessageRole = "assistant"
)

// CompletionResponse contains the full response from a completion.
type CompletionResponse struct {
	// Content is the generated text response.
	Content string

	// FinishReason explains why generation stopped.
	FinishReason FinishReason

	// Usage contains token consumption information.
	Usage TokenUsage

	// Model is the actual model ID that handled this request.
	Model string

	// RequestID is the unique identifier for this request (for tracing).
	RequestID string

	// Created is the timestamp when this response was generated.
	Created time.Time
}

// FinishReason indicates why completion generation stopped.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content_filter"
	FinishReasonError         FinishReason = "error"
)

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int

	// CacheReadTokens tracks tokens served from the provider's prompt cache.
	CacheReadTokens int
}

// Prompt builds a two-message request: an optional system prompt followed
// by the user prompt.
func Prompt(task, system, user string, temperature float64) CompletionRequest {
	var msgs []Message
	if system != "" {
		msgs = append(msgs, Message{Role: MessageRoleSystem, Content: system})
	}
	msgs = append(msgs, Message{Role: MessageRoleUser, Content: user})
	return CompletionRequest{
		Messages:    msgs,
		Temperature: &temperature,
		Metadata:    map[string]string{MetadataTask: task},
	}
}

// Text sends req and returns the response content.
func Text(ctx context.Context, p Provider, req CompletionRequest) (string, error) {
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
