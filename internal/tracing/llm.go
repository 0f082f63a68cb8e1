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

package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/squash/pkg/llm"
)

// TracedProvider wraps an LLM provider with a client span and metrics per
// completion.
type TracedProvider struct {
	provider llm.Provider
	tracer   trace.Tracer
	metrics  *MetricsCollector
}

// WrapProvider instruments provider. metrics may be nil.
func WrapProvider(provider llm.Provider, tracer trace.Tracer, metrics *MetricsCollector) *TracedProvider {
	return &TracedProvider{provider: provider, tracer: tracer, metrics: metrics}
}

// Name returns the underlying provider's name.
func (t *TracedProvider) Name() string {
	return t.provider.Name()
}

// Complete runs the completion inside an llm.complete span.
func (t *TracedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	attrs := []attribute.KeyValue{
		attribute.String("llm.provider", t.provider.Name()),
		attribute.String("llm.task", req.Task()),
	}
	if req.Model != "" {
		attrs = append(attrs, attribute.String("llm.model", req.Model))
	}
	if req.Temperature != nil {
		attrs = append(attrs, attribute.Float64("llm.temperature", *req.Temperature))
	}
	ctx, span := t.tracer.Start(ctx, "llm.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	resp, err := t.provider.Complete(ctx, req)
	latency := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.metrics.RecordLLMRequest(ctx, t.provider.Name(), req.Task(), "error", 0, 0, latency)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("llm.response.model", resp.Model),
		attribute.String("llm.response.finish_reason", string(resp.FinishReason)),
		attribute.Int("llm.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int("llm.usage.output_tokens", resp.Usage.OutputTokens),
		attribute.Int("llm.response.content_length", len(resp.Content)),
	)
	span.SetStatus(codes.Ok, "")
	t.metrics.RecordLLMRequest(ctx, t.provider.Name(), req.Task(), "success",
		resp.Usage.InputTokens, resp.Usage.OutputTokens, latency)
	return resp, nil
}
