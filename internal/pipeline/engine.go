// Package pipeline runs the decision-support workflow: route the query,
// collect source and interview data, aggregate it, analyze and score
// opportunities, generate deliverables for the top one, then review.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/squash/internal/analysis"
	"github.com/tombee/squash/internal/connector"
	"github.com/tombee/squash/internal/generation"
	"github.com/tombee/squash/internal/log"
	"github.com/tombee/squash/internal/processing"
	"github.com/tombee/squash/internal/tracing"
	"github.com/tombee/squash/pkg/llm"
)

const tracerName = "github.com/tombee/squash/internal/pipeline"

var stageErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "squash_pipeline_stage_errors_total",
		Help: "Errors recorded by pipeline stages",
	},
	[]string{"stage"},
)

// Servers is the part of the connector manager a run needs.
type Servers interface {
	Acquire(ctx context.Context) (func(), error)
	Servers() []*connector.Connector
}

// DocumentParser turns an uploaded file path into a document.
// *processing.DocumentCache satisfies it.
type DocumentParser interface {
	Parse(path string) processing.Document
}

type parseFunc func(string) processing.Document

func (f parseFunc) Parse(path string) processing.Document { return f(path) }

// Options configures an Engine. Provider and Servers are required.
type Options struct {
	Provider llm.Provider
	Servers  Servers

	// Scorer orders opportunities. Nil uses RICE.
	Scorer *analysis.Scorer
	// Documents parses uploads. Nil parses every file afresh.
	Documents DocumentParser
	// Events receives stage and run notifications. Nil creates a private
	// emitter.
	Events  *EventEmitter
	Metrics *tracing.MetricsCollector
	Tracer  trace.Tracer
	Logger  *slog.Logger
}

// Engine runs pipeline executions. One engine can run many queries; runs
// sharing a Servers value are serialized by its lease.
type Engine struct {
	provider   llm.Provider
	servers    Servers
	scorer     *analysis.Scorer
	documents  DocumentParser
	events     *EventEmitter
	metrics    *tracing.MetricsCollector
	tracer     trace.Tracer
	logger     *slog.Logger
	interviews *processing.InterviewProcessor
	analyzer   *analysis.Analyzer
	generator  *generation.Generator
	machine    *Machine
}

type stageStartKey struct{}

// New creates an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = log.WithComponent(logger, "pipeline")

	e := &Engine{
		provider:  opts.Provider,
		servers:   opts.Servers,
		scorer:    opts.Scorer,
		documents: opts.Documents,
		events:    opts.Events,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		logger:    logger,
	}
	if e.scorer == nil {
		e.scorer, _ = analysis.NewScorer(analysis.MethodRICE, "")
	}
	if e.documents == nil {
		e.documents = parseFunc(processing.ParseDocument)
	}
	if e.events == nil {
		e.events = NewEventEmitter(false)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	e.interviews = processing.NewInterviewProcessor(e.provider, logger)
	e.analyzer = analysis.NewAnalyzer(e.provider, logger)
	e.generator = generation.New(e.provider, logger)

	e.machine = NewMachine([]*Transition{
		{From: PhaseStart, To: PhaseRouted, Event: StageRoute, Action: e.route},
		{From: PhaseRouted, To: PhaseCollected, Event: StageCollect, Action: e.collect},
		{From: PhaseCollected, To: PhaseAggregated, Event: StageAggregate, Action: e.aggregate},
		{From: PhaseAggregated, To: PhaseAnalyzed, Event: StageAnalyze, Action: e.analyze},
		{From: PhaseAnalyzed, To: PhaseGenerated, Event: StageGenerate, Action: e.generate},
		{From: PhaseGenerated, To: PhaseReviewed, Event: StageReview, Action: e.review},
	}, Hooks{BeforeStage: e.beforeStage, AfterStage: e.afterStage})
	return e
}

// Events returns the engine's event emitter.
func (e *Engine) Events() *EventEmitter { return e.events }

// Run executes every stage once, in order, for query over the uploaded
// files. Stage failures are recorded on the returned state and never stop
// the run. The state is incomplete only when the run could not start: ctx
// ended while waiting for the server lease.
func (e *Engine) Run(ctx context.Context, query string, files []string) *State {
	s := NewState(uuid.New().String(), query, files)
	s.StartedAt = time.Now()
	logger := log.WithRunContext(e.logger, s.RunID, "")

	release, err := e.servers.Acquire(ctx)
	if err != nil {
		s.RecordError("run", err)
		s.FinishedAt = time.Now()
		logger.Warn("run not started", log.Error(err))
		return s
	}
	defer release()

	ctx, span := e.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("squash.run_id", s.RunID),
		attribute.Int("squash.files", len(files)),
	))
	defer span.End()
	e.metrics.RecordRunStart()
	logger.Info("run started", "files", len(files))

	for _, stage := range Stages {
		if err := e.machine.Trigger(ctx, s, stage); err != nil {
			s.RecordError(stage, err)
			break
		}
	}
	s.FinishedAt = time.Now()

	status := "completed"
	if len(s.Errors) > 0 {
		status = "completed_with_errors"
		span.SetAttributes(attribute.Bool(tracing.AttrRunError, true))
		span.SetStatus(codes.Error, s.Error)
	}
	span.SetAttributes(attribute.String("squash.query_type", s.QueryType))
	e.metrics.RecordRunComplete(ctx, s.QueryType, status, s.FinishedAt.Sub(s.StartedAt))
	logger.Info("run finished",
		"query_type", s.QueryType,
		"status", status,
		"errors", len(s.Errors),
		log.DurationKey, s.FinishedAt.Sub(s.StartedAt).Milliseconds())

	_ = e.events.Emit(ctx, &Event{
		Type:  EventRunCompleted,
		RunID: s.RunID,
		Data: map[string]any{
			"status":     status,
			"query_type": s.QueryType,
			"completed":  s.Completed,
			"errors":     len(s.Errors),
		},
	})
	return s
}

func (e *Engine) beforeStage(ctx context.Context, s *State, stage string) context.Context {
	ctx, _ = e.tracer.Start(ctx, "pipeline."+stage, trace.WithAttributes(attribute.String("squash.stage", stage)))
	ctx = context.WithValue(ctx, stageStartKey{}, time.Now())
	log.WithStageContext(e.logger, s.RunID, stage).Debug("stage started")
	_ = e.events.Emit(ctx, &Event{
		Type:  EventStageStarted,
		RunID: s.RunID,
		Stage: stage,
		Data:  map[string]any{"query": s.Query, "files": s.UploadedFiles, "started_at": s.StartedAt},
	})
	return ctx
}

func (e *Engine) afterStage(ctx context.Context, s *State, stage string, err error) {
	var elapsed time.Duration
	if start, ok := ctx.Value(stageStartKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}
	span := trace.SpanFromContext(ctx)
	defer span.End()

	logger := log.WithStageContext(e.logger, s.RunID, stage)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		stageErrors.WithLabelValues(stage).Inc()
		logger.Error("stage failed", log.Error(err))
		_ = e.events.Emit(ctx, &Event{
			Type:  EventStageError,
			RunID: s.RunID,
			Stage: stage,
			Data:  map[string]any{"error": err.Error()},
		})
	}
	e.metrics.RecordStageComplete(ctx, stage, status, elapsed)
	logger.Debug("stage completed", log.DurationKey, elapsed.Milliseconds())
	_ = e.events.Emit(ctx, &Event{
		Type:  EventStageCompleted,
		RunID: s.RunID,
		Stage: stage,
		Data:  map[string]any{"status": status, "duration_ms": elapsed.Milliseconds(), "phase": string(s.Phase)},
	})
}
