package insights

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/connector"
	"github.com/tombee/squash/internal/log"
	"github.com/tombee/squash/pkg/errors"
)

type fakeSource struct {
	name  string
	caps  []string
	fail  map[string]bool
	calls []string
}

func (f *fakeSource) Name() string           { return f.name }
func (f *fakeSource) Capabilities() []string { return f.caps }

func (f *fakeSource) Call(ctx context.Context, capability string, params map[string]any) connector.Result {
	f.calls = append(f.calls, capability)
	if f.fail[capability] {
		return connector.Result{"error": "boom"}
	}
	return connector.Result{"capability": capability}
}

func TestSections(t *testing.T) {
	tests := []struct {
		name string
		caps []string
		want []string
	}{
		{"mixpanel", nil, []string{"user_metrics", "events", "funnel", "retention"}},
		{"zendesk", []string{"get_tickets"}, []string{"tickets", "metrics"}},
		{"confluence", nil, []string{"requirements"}},
		{"amplitude", []string{"get_user_metrics", "query_events"}, []string{"user_metrics", "query_events"}},
		{"empty", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := []string{}
			for _, s := range Sections(tt.name, tt.caps) {
				keys = append(keys, s.Key)
			}
			assert.Equal(t, tt.want, keys)
		})
	}
	assert.True(t, IsKnown("salesforce"))
	assert.False(t, IsKnown("hubspot"))
}

func TestCollect_KnownSource(t *testing.T) {
	src := &fakeSource{name: "intercom"}

	bundle, err := Collect(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, "intercom", bundle["source"])
	assert.Equal(t, connector.Result{"capability": "get_conversations"}, bundle["conversations"])
	assert.Equal(t, connector.Result{"capability": "get_customer_sentiment"}, bundle["sentiment"])
	assert.Equal(t, []string{"get_conversations", "get_customer_sentiment"}, src.calls)
}

func TestCollect_PartialFailureKeepsBundle(t *testing.T) {
	src := &fakeSource{name: "jira", fail: map[string]bool{"get_sprint_data": true}}

	bundle, err := Collect(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, connector.Result{"error": "boom"}, bundle["sprint"])
	assert.Len(t, bundle, 4)
}

func TestCollect_AllSectionsFailed(t *testing.T) {
	src := &fakeSource{name: "posthog", fail: map[string]bool{"query_events": true, "get_feature_flags": true}}

	bundle, err := Collect(context.Background(), src)
	var serr *errors.SourceError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "posthog", serr.Source)
	assert.Contains(t, serr.Message, "get_feature_flags")
	assert.Equal(t, "posthog", bundle["source"])
}

func TestCollect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{name: "mixpanel"}

	bundle, err := Collect(ctx, src)
	require.Error(t, err)
	assert.Empty(t, src.calls)
	assert.Equal(t, Bundle{"source": "mixpanel"}, bundle)
}

func TestCollect_MockConnector(t *testing.T) {
	desc := &config.ServerDescriptor{
		Name:         "mixpanel",
		Type:         config.TypeAnalytics,
		Capabilities: []string{"query_events", "get_user_metrics", "get_funnel_data", "get_retention_data"},
	}
	c, err := connector.New(context.Background(), desc, connector.Options{ForceMock: true, Logger: log.Discard()})
	require.NoError(t, err)

	bundle, err := Collect(context.Background(), c)
	require.NoError(t, err)

	metrics, ok := bundle["user_metrics"].(connector.Result)
	require.True(t, ok)
	assert.Equal(t, 12500, metrics["total_users"])
}
