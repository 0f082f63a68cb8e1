package pipeline

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/squash/internal/analysis"
	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/connector"
	"github.com/tombee/squash/internal/log"
	"github.com/tombee/squash/pkg/errors"
	"github.com/tombee/squash/pkg/llm"
	"github.com/tombee/squash/pkg/llm/llmtest"
	"github.com/tombee/squash/pkg/llm/providers"
)

const testServers = `
servers:
  mixpanel:
    type: analytics
    capabilities: [query_events, get_user_metrics, get_funnel_data, get_retention_data]
  posthog:
    type: analytics
    capabilities: [query_events, get_feature_flags]
  zendesk:
    type: support
    capabilities: [get_tickets, get_ticket_metrics]
  intercom:
    type: support
    capabilities: [get_conversations, get_customer_sentiment]
  salesforce:
    type: sales
    capabilities: [get_opportunities, get_win_loss_reasons, get_customer_feedback]
  jira:
    type: pm
    capabilities: [get_issues, get_sprint_data, get_backlog]
  confluence:
    type: pm
    capabilities: [get_requirements]
`

func newManager(t *testing.T, yaml string) *connector.Manager {
	t.Helper()
	reg, err := config.ParseRegistry([]byte(yaml))
	require.NoError(t, err)
	m := connector.NewManager(context.Background(), reg, connector.Options{ForceMock: true, Logger: log.Discard()})
	t.Cleanup(m.Shutdown)
	return m
}

func newEngine(t *testing.T, provider llm.Provider, servers Servers) *Engine {
	t.Helper()
	return New(Options{Provider: provider, Servers: servers, Logger: log.Discard()})
}

// recorder collects every event in emission order.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(_ context.Context, ev *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, string(ev.Type)+":"+ev.Stage)
	}
	return out
}

func TestEngine_RunOffline(t *testing.T) {
	dir := t.TempDir()
	transcript := filepath.Join(dir, "acme.txt")
	require.NoError(t, os.WriteFile(transcript, []byte("Exporting to spreadsheets takes forever."), 0o644))

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	rec := &recorder{}
	events := NewEventEmitter(false)
	events.OnAll(rec.listen)

	e := New(Options{
		Provider: providers.NewOfflineProvider(),
		Servers:  newManager(t, testServers),
		Events:   events,
		Tracer:   tp.Tracer("test"),
		Logger:   log.Discard(),
	})
	s := e.Run(context.Background(), "What should we build next?", []string{transcript})

	assert.Empty(t, s.Errors)
	assert.True(t, s.Completed)
	assert.Equal(t, PhaseReviewed, s.Phase)
	assert.Equal(t, QueryFeatureDiscovery, s.QueryType)
	assert.NotEmpty(t, s.RunID)

	require.NotNil(t, s.InterviewData)
	assert.Equal(t, 1, s.InterviewData.TotalInterviews)
	require.Len(t, s.AnalyticsData, 2)
	assert.Equal(t, "mixpanel", s.AnalyticsData[0]["source"])
	assert.Equal(t, "posthog", s.AnalyticsData[1]["source"])
	require.Len(t, s.SupportData, 2)
	assert.Equal(t, "zendesk", s.SupportData[0]["source"])
	assert.Equal(t, "salesforce", s.SalesData["source"])
	require.Len(t, s.PMData, 2)
	assert.Equal(t, "confluence", s.PMData[1]["source"])

	require.NotNil(t, s.AggregatedData)
	require.NotEmpty(t, s.ScoredFeatures)
	require.NotNil(t, s.TopFeature)
	assert.Equal(t, s.ScoredFeatures[0].Name, s.TopFeature.Name)
	assert.NotNil(t, s.TopFeature.RICEScore)
	require.NotNil(t, s.FeatureSpec)
	assert.Equal(t, "Bulk Data Export", s.FeatureSpec.Overview.Title)
	require.NotNil(t, s.TaskBreakdown)
	assert.Len(t, s.TaskBreakdown.Tasks, 5)

	var want []string
	for _, stage := range Stages {
		want = append(want, "stage_started:"+stage, "stage_completed:"+stage)
	}
	want = append(want, "run_completed:")
	assert.Equal(t, want, rec.types())

	names := map[string]bool{}
	for _, span := range exporter.GetSpans() {
		names[span.Name] = true
	}
	assert.True(t, names["pipeline.run"])
	for _, stage := range Stages {
		assert.True(t, names["pipeline."+stage], stage)
	}
}

func TestEngine_EmptyQueryCompletes(t *testing.T) {
	e := newEngine(t, providers.NewOfflineProvider(), connector.NewManager(context.Background(), nil, connector.Options{Logger: log.Discard()}))

	s := e.Run(context.Background(), "", nil)

	assert.True(t, s.Completed)
	assert.Equal(t, QueryFeatureDiscovery, s.QueryType)
	assert.Empty(t, s.UploadedFiles)
	assert.NotNil(t, s.UploadedFiles)
	assert.Nil(t, s.InterviewData)
	assert.Empty(t, s.AnalyticsData)
	assert.Nil(t, s.SalesData)
}

func TestEngine_AnalyzeFailureYieldsErrorOpportunity(t *testing.T) {
	p := llmtest.New()
	p.Fail(llm.TaskAnalyze, stderrors.New("model overloaded"))
	e := newEngine(t, p, newManager(t, testServers))

	s := e.Run(context.Background(), "What next?", nil)

	require.Len(t, s.FeatureOpportunities, 1)
	require.Len(t, s.ScoredFeatures, 1)
	require.NotNil(t, s.TopFeature)
	assert.Equal(t, "Error", s.TopFeature.Name)
	assert.Equal(t, "Failed to analyze features", s.TopFeature.Description)
	assert.Equal(t, analysis.ConfidenceLow, s.TopFeature.Confidence)
	assert.Equal(t, []string{}, s.TopFeature.Evidence)
	assert.Equal(t, "N/A", s.TopFeature.ExpectedImpact)
	assert.Contains(t, s.Error, "model overloaded")

	require.Len(t, s.Errors, 1)
	assert.Equal(t, StageAnalyze, s.Errors[0].Stage)
	assert.True(t, s.Completed)
	assert.NotNil(t, s.FeatureSpec, "generation runs for the error opportunity")
}

func TestEngine_NoTopFeatureSkipsGeneration(t *testing.T) {
	p := llmtest.New()
	e := newEngine(t, p, newManager(t, testServers))

	s := e.Run(context.Background(), "What next?", nil)

	assert.Empty(t, s.ScoredFeatures)
	assert.Nil(t, s.TopFeature)
	assert.Nil(t, s.ImpactAssessment)
	assert.Nil(t, s.FeatureSpec)
	assert.Nil(t, s.UIProposals)
	assert.Nil(t, s.TaskBreakdown)
	assert.Empty(t, p.CallsFor(llm.TaskImpact))
	assert.True(t, s.Completed)
	assert.Empty(t, s.Errors)
}

func TestEngine_Route(t *testing.T) {
	tests := []struct {
		name     string
		response string
		fail     bool
		want     string
	}{
		{name: "exact", response: "analysis", want: QueryAnalysis},
		{name: "padded and cased", response: "  Task_Breakdown\n", want: QueryTaskBreakdown},
		{name: "unrecognised", response: "roadmap", want: QueryFeatureDiscovery},
		{name: "llm failure", fail: true, want: QueryFeatureDiscovery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := llmtest.New()
			if tt.fail {
				p.Fail(llm.TaskRoute, stderrors.New("timeout"))
			} else {
				p.On(llm.TaskRoute, tt.response)
			}
			s := NewState("r", "Which trends matter?", nil)
			err := newEngine(t, p, nil).route(context.Background(), s)

			assert.Equal(t, tt.want, s.QueryType)
			assert.Equal(t, tt.fail, err != nil)

			calls := p.CallsFor(llm.TaskRoute)
			require.Len(t, calls, 1)
			require.Len(t, calls[0].Messages, 1, "classifier prompt is a single user message")
			assert.Contains(t, calls[0].Messages[0].Content, "User query: Which trends matter?")
			assert.Equal(t, 0.3, *calls[0].Temperature)
		})
	}
}

func TestEngine_SourceFailureDoesNotAbortCollect(t *testing.T) {
	servers := testServers + `
  productboard:
    type: pm
    capabilities: [get_feature_ideas]
  ledger:
    type: billing
    capabilities: [get_invoices]
`
	e := newEngine(t, providers.NewOfflineProvider(), newManager(t, servers))

	s := e.Run(context.Background(), "What next?", nil)

	require.Len(t, s.PMData, 3)
	assert.Equal(t, "productboard", s.PMData[2]["source"])
	assert.Len(t, s.AnalyticsData, 2)
	assert.Len(t, s.SupportData, 2)

	require.Len(t, s.Errors, 1)
	assert.Equal(t, StageCollect, s.Errors[0].Stage)
	assert.Contains(t, s.Errors[0].Message, "productboard")
	assert.True(t, s.Completed)
}

func TestEngine_WaitsForLease(t *testing.T) {
	m := newManager(t, testServers)
	release, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newEngine(t, providers.NewOfflineProvider(), m).Run(ctx, "What next?", nil)

	assert.False(t, s.Completed)
	assert.Equal(t, PhaseStart, s.Phase)
	require.Len(t, s.Errors, 1)
	assert.Equal(t, "run", s.Errors[0].Stage)
}

func TestCategorize(t *testing.T) {
	m := newManager(t, testServers+`
  amplitude:
    type: analytics
    capabilities: [get_events]
  hubspot:
    type: sales
    capabilities: [get_deals]
`)
	groups := categorize(m.Servers())

	names := func(cat string) []string {
		var out []string
		for _, c := range groups[cat] {
			out = append(out, c.Name())
		}
		return out
	}
	assert.Equal(t, []string{"mixpanel", "posthog", "amplitude"}, names(categoryAnalytics))
	assert.Equal(t, []string{"zendesk", "intercom"}, names(categorySupport))
	assert.Equal(t, []string{"salesforce", "hubspot"}, names(categorySales))
	assert.Equal(t, []string{"jira", "confluence"}, names(categoryPM))
}

func TestMachine(t *testing.T) {
	var order []string
	step := func(name string) StageFunc {
		return func(context.Context, *State) error {
			order = append(order, name)
			return nil
		}
	}
	m := NewMachine([]*Transition{
		{From: PhaseStart, To: PhaseRouted, Event: StageRoute, Action: step("route")},
		{From: PhaseRouted, To: PhaseCollected, Event: StageCollect, Action: func(context.Context, *State) error {
			panic("boom")
		}},
		{From: PhaseCollected, To: PhaseAggregated, Event: StageAggregate, Action: step("aggregate")},
	}, Hooks{})
	ctx := context.Background()
	s := NewState("r", "q", nil)

	var verr *errors.ValidationError
	err := m.Trigger(ctx, s, StageCollect)
	require.True(t, stderrors.As(err, &verr), "out of order trigger")
	assert.Contains(t, verr.Message, "transition not allowed: from start on event collect")
	assert.Equal(t, PhaseStart, s.Phase)

	err = m.Trigger(ctx, s, "deploy")
	require.True(t, stderrors.As(err, &verr))
	assert.Equal(t, "unknown event: deploy", verr.Message)

	require.NoError(t, m.Trigger(ctx, s, StageRoute))
	require.NoError(t, m.Trigger(ctx, s, StageCollect))
	assert.Equal(t, PhaseCollected, s.Phase, "phase advances past a panicking stage")
	require.Len(t, s.Errors, 1)
	assert.Equal(t, StageCollect, s.Errors[0].Stage)
	assert.Contains(t, s.Errors[0].Message, "stage collect failed: panic: boom")

	require.NoError(t, m.Trigger(ctx, s, StageAggregate))
	assert.Equal(t, []string{"route", "aggregate"}, order)

	err = m.Trigger(ctx, s, StageRoute)
	require.True(t, stderrors.As(err, &verr), "stages run once")
}

func TestEventEmitter(t *testing.T) {
	for _, async := range []bool{false, true} {
		e := NewEventEmitter(async)
		var mu sync.Mutex
		var got []string
		e.On(EventStageStarted, func(_ context.Context, ev *Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, ev.Stage)
			return nil
		})
		e.On(EventStageStarted, func(context.Context, *Event) error { return stderrors.New("listener down") })
		assert.Equal(t, 2, e.ListenerCount(EventStageStarted))

		ev := &Event{Type: EventStageStarted, RunID: "r", Stage: StageRoute}
		err := e.Emit(context.Background(), ev)
		assert.EqualError(t, err, "listener down")
		assert.False(t, ev.Timestamp.IsZero())
		assert.Equal(t, []string{StageRoute}, got)
		assert.NoError(t, e.Emit(context.Background(), &Event{Type: EventRunCompleted}))

		e.Off(EventStageStarted)
		assert.Zero(t, e.ListenerCount(EventStageStarted))
		e.OnAll(func(context.Context, *Event) error { return nil })
		assert.Equal(t, 1, e.ListenerCount(EventRunCompleted))
		e.RemoveAllListeners()
		assert.Zero(t, e.ListenerCount(EventRunCompleted))
		assert.Error(t, e.Emit(context.Background(), nil))
	}
}
