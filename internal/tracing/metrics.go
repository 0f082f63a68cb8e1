package tracing

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsCollector records pipeline run, stage and LLM metrics. A nil
// collector records nothing.
type MetricsCollector struct {
	runsTotal        metric.Int64Counter
	stagesTotal      metric.Int64Counter
	llmRequestsTotal metric.Int64Counter
	tokensTotal      metric.Int64Counter

	runDuration   metric.Float64Histogram
	stageDuration metric.Float64Histogram
	llmLatency    metric.Float64Histogram

	activeRuns atomic.Int64
}

// NewMetricsCollector creates the instruments on meterProvider.
func NewMetricsCollector(meterProvider metric.MeterProvider) (*MetricsCollector, error) {
	meter := meterProvider.Meter("squash")
	mc := &MetricsCollector{}

	var err error
	mc.runsTotal, err = meter.Int64Counter(
		"squash_runs_total",
		metric.WithDescription("Total number of pipeline runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	mc.stagesTotal, err = meter.Int64Counter(
		"squash_stages_total",
		metric.WithDescription("Total number of pipeline stages executed"),
		metric.WithUnit("{stage}"),
	)
	if err != nil {
		return nil, err
	}

	mc.llmRequestsTotal, err = meter.Int64Counter(
		"squash_llm_requests_total",
		metric.WithDescription("Total number of LLM requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	mc.tokensTotal, err = meter.Int64Counter(
		"squash_tokens_total",
		metric.WithDescription("Total number of tokens processed"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	mc.runDuration, err = meter.Float64Histogram(
		"squash_run_duration_seconds",
		metric.WithDescription("Pipeline run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	mc.stageDuration, err = meter.Float64Histogram(
		"squash_stage_duration_seconds",
		metric.WithDescription("Stage execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	mc.llmLatency, err = meter.Float64Histogram(
		"squash_llm_latency_seconds",
		metric.WithDescription("LLM request latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"squash_active_runs",
		metric.WithDescription("Number of pipeline runs in progress"),
		metric.WithUnit("{run}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(mc.activeRuns.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return mc, nil
}

// RecordRunStart marks a run as active.
func (mc *MetricsCollector) RecordRunStart() {
	if mc == nil {
		return
	}
	mc.activeRuns.Add(1)
}

// RecordRunComplete records a finished run.
func (mc *MetricsCollector) RecordRunComplete(ctx context.Context, queryType, status string, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.activeRuns.Add(-1)
	attrs := metric.WithAttributes(
		attribute.String("query_type", queryType),
		attribute.String("status", status),
	)
	mc.runsTotal.Add(ctx, 1, attrs)
	mc.runDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordStageComplete records one stage execution.
func (mc *MetricsCollector) RecordStageComplete(ctx context.Context, stage, status string, duration time.Duration) {
	if mc == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	)
	mc.stagesTotal.Add(ctx, 1, attrs)
	mc.stageDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordLLMRequest records one completion call.
func (mc *MetricsCollector) RecordLLMRequest(ctx context.Context, provider, task, status string, inputTokens, outputTokens int, latency time.Duration) {
	if mc == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.String("task", task),
		attribute.String("status", status),
	}
	mc.llmRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	mc.llmLatency.Record(ctx, latency.Seconds(), metric.WithAttributes(attrs...))

	if inputTokens > 0 {
		mc.tokensTotal.Add(ctx, int64(inputTokens), metric.WithAttributes(append(attrs, attribute.String("type", "input"))...))
	}
	if outputTokens > 0 {
		mc.tokensTotal.Add(ctx, int64(outputTokens), metric.WithAttributes(append(attrs, attribute.String("type", "output"))...))
	}
}
