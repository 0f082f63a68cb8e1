package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tombee/squash/pkg/errors"
	"github.com/tombee/squash/pkg/llm"
)

func newTestAnthropic(t *testing.T, h http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	p, err := NewAnthropicProvider("sk-test", "claude-3-5-sonnet-20241022")
	require.NoError(t, err)
	p.baseURL = srv.URL
	return p
}

func TestAnthropicProvider_Complete(t *testing.T) {
	var got anthropicRequest
	p := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"model": "claude-3-5-sonnet-20241022",
			"stop_reason": "end_turn",
			"content": [{"type": "text", "text": "feature_discovery"}],
			"usage": {"input_tokens": 12, "output_tokens": 3}
		}`))
	})

	resp, err := p.Complete(context.Background(), llm.Prompt(llm.TaskRoute, "be brief", "what should we build?", 0.3))
	require.NoError(t, err)

	assert.Equal(t, "feature_discovery", resp.Content)
	assert.Equal(t, llm.FinishReasonStop, resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.NotEmpty(t, resp.RequestID)

	assert.Equal(t, "claude-3-5-sonnet-20241022", got.Model)
	assert.Equal(t, "be brief", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, anthropicDefaultMaxTokens, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.3, *got.Temperature, 1e-9)
}

func TestAnthropicProvider_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantRetryable bool
		wantMessage   string
	}{
		{
			name:        "structured error",
			status:      http.StatusUnauthorized,
			body:        `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			wantMessage: "invalid x-api-key",
		},
		{
			name:          "overloaded",
			status:        529,
			body:          `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			wantRetryable: true,
			wantMessage:   "Overloaded",
		},
		{
			name:          "unstructured",
			status:        http.StatusBadGateway,
			body:          `<html>bad gateway</html>`,
			wantRetryable: true,
			wantMessage:   "status 502",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := p.Complete(context.Background(), llm.Prompt(llm.TaskSpec, "", "x", 0.6))
			require.Error(t, err)

			var perr *pkgerrors.ProviderError
			require.True(t, pkgerrors.As(err, &perr))
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.Equal(t, tt.wantRetryable, perr.IsRetryable())
			assert.Contains(t, perr.Message, tt.wantMessage)
		})
	}
}

func TestAnthropicProvider_Validation(t *testing.T) {
	_, err := NewAnthropicProvider("", "m")
	var cerr *pkgerrors.ConfigError
	require.True(t, pkgerrors.As(err, &cerr))
	assert.Equal(t, "ANTHROPIC_API_KEY", cerr.Key)

	p := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err = p.Complete(context.Background(), llm.CompletionRequest{})
	var verr *pkgerrors.ValidationError
	assert.True(t, pkgerrors.As(err, &verr))
}

func TestMapStopReason(t *testing.T) {
	assert.Equal(t, llm.FinishReasonLength, mapStopReason("max_tokens"))
	assert.Equal(t, llm.FinishReasonContentFilter, mapStopReason("refusal"))
	assert.Equal(t, llm.FinishReasonStop, mapStopReason("end_turn"))
}

func TestOfflineProvider_Route(t *testing.T) {
	tests := map[string]string{
		"What should we build next?":                  "feature_discovery",
		"Break down the export feature into tasks":    "task_breakdown",
		"What trends do you see in support tickets?":  "analysis",
		"":                                            "feature_discovery",
		"Estimate the work for SSO and set milestones": "task_breakdown",
	}
	p := NewOfflineProvider()
	for query, want := range tests {
		got, err := llm.Text(context.Background(), p, llm.Prompt(llm.TaskRoute, "", query, 0.3))
		require.NoError(t, err)
		assert.Equal(t, want, got, query)
	}
}

func TestOfflineProvider_CannedJSON(t *testing.T) {
	p := NewOfflineProvider()
	for _, task := range []string{llm.TaskInterview, llm.TaskAnalyze, llm.TaskImpact, llm.TaskSpec, llm.TaskUI, llm.TaskTasks, "unknown"} {
		t.Run(task, func(t *testing.T) {
			var v map[string]any
			require.NoError(t, llm.CompleteJSON(context.Background(), p, llm.Prompt(task, "", "x", 0.5), &v))
		})
	}

	var out struct {
		Opportunities []map[string]any `json:"opportunities"`
	}
	require.NoError(t, llm.CompleteJSON(context.Background(), p, llm.Prompt(llm.TaskAnalyze, "", "x", 0.7), &out))
	assert.Len(t, out.Opportunities, 3)
}

func TestOfflineProvider_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewOfflineProvider().Complete(ctx, llm.Prompt(llm.TaskRoute, "", "q", 0.3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	tracker := llm.NewUsageTracker()
	p, err := New(context.Background(), Options{Provider: "offline", CacheSize: 16, Tracker: tracker})
	require.NoError(t, err)
	assert.Equal(t, "offline", p.Name())

	_, err = p.Complete(context.Background(), llm.Prompt(llm.TaskSpec, "", "x", 0.6))
	require.NoError(t, err)
	assert.Equal(t, 1, tracker.Total().TotalRequests)

	p, err = New(context.Background(), Options{Provider: "anthropic", AnthropicAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &llm.RetryableProvider{}, p)

	_, err = New(context.Background(), Options{Provider: "anthropic"})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{Provider: "gemini"})
	var cerr *pkgerrors.ConfigError
	require.True(t, pkgerrors.As(err, &cerr))
	assert.Equal(t, "GEMINI_API_KEY", cerr.Key)

	_, err = New(context.Background(), Options{Provider: "llama"})
	assert.Error(t, err)
}

func TestMapGeminiFinishReason(t *testing.T) {
	assert.Equal(t, llm.FinishReasonStop, mapGeminiFinishReason(""))
	assert.Equal(t, llm.FinishReasonLength, mapGeminiFinishReason("MAX_TOKENS"))
	assert.Equal(t, llm.FinishReasonContentFilter, mapGeminiFinishReason("SAFETY"))
	assert.Equal(t, llm.FinishReasonError, mapGeminiFinishReason("MALFORMED_FUNCTION_CALL"))
}

func TestOfflineProvider_RouteReadsQueryLine(t *testing.T) {
	prompt := func(q string) string {
		return "Classify into feature_discovery, analysis, or task_breakdown.\n\nUser query: " + q + "\n\nRespond with ONLY one word: feature_discovery, analysis, or task_breakdown"
	}
	p := NewOfflineProvider()
	for query, want := range map[string]string{
		"What should we build next?":          "feature_discovery",
		"":                                    "feature_discovery",
		"Break down bulk export into tasks":   "task_breakdown",
		"Which patterns show up in churn?":    "analysis",
	} {
		got, err := llm.Text(context.Background(), p, llm.Prompt(llm.TaskRoute, "", prompt(query), 0.3))
		require.NoError(t, err)
		assert.Equal(t, want, got, query)
	}
}
