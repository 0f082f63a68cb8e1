package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessUserMetrics(t *testing.T) {
	t.Run("populated", func(t *testing.T) {
		m := ProcessUserMetrics(map[string]any{
			"total_users":          12500,
			"active_users":         float64(8300),
			"retention_rate":       0.68,
			"avg_session_duration": "12m 34s",
			"top_features":         []any{map[string]any{"name": "Dashboard", "usage": 85}},
		})
		assert.Equal(t, 12500, m.TotalUsers)
		assert.Equal(t, float64(8300), m.ActiveUsers)
		assert.Equal(t, "12m 34s", m.EngagementScore)
		assert.Len(t, m.TopFeatures, 1)
	})

	t.Run("defaults", func(t *testing.T) {
		m := ProcessUserMetrics(map[string]any{})
		assert.Equal(t, 0, m.TotalUsers)
		assert.Equal(t, 0, m.RetentionRate)
		assert.Equal(t, "N/A", m.EngagementScore)
		assert.NotNil(t, m.TopFeatures)
	})
}

func TestProcessEvents(t *testing.T) {
	s := ProcessEvents(map[string]any{
		"events": []any{
			map[string]any{"name": "page_view", "trend": "+12%"},
			map[string]any{"name": "export", "trend": "-4%"},
			map[string]any{"name": "login"},
		},
	})
	assert.Equal(t, 3, s.TotalEvents)
	require.Len(t, s.TrendingUp, 1)
	require.Len(t, s.TrendingDown, 1)
	assert.Equal(t, "page_view", s.TrendingUp[0].(map[string]any)["name"])
	assert.Equal(t, "export", s.TrendingDown[0].(map[string]any)["name"])

	empty := ProcessEvents(map[string]any{})
	assert.Equal(t, 0, empty.TotalEvents)
	assert.NotNil(t, empty.Events)
}

func TestProcessFunnel(t *testing.T) {
	s := ProcessFunnel(map[string]any{
		"funnel_name": "Onboarding",
		"bottleneck":  "Setup",
		"steps": []any{
			map[string]any{"step": "Signup", "conversion": 100},
			map[string]any{"step": "Setup", "conversion": 62.5},
			map[string]any{"step": "Activate", "conversion": float64(40)},
		},
	})
	assert.Empty(t, s.Error)
	assert.Equal(t, "Onboarding", s.FunnelName)
	assert.Equal(t, 3, s.TotalSteps)
	assert.Equal(t, 40.0, s.OverallConversion)
	assert.Equal(t, []DropOff{
		{From: "Signup", To: "Setup", DropOffRate: 37.5},
		{From: "Setup", To: "Activate", DropOffRate: 22.5},
	}, s.DropOffs)

	assert.Equal(t, "No funnel data", ProcessFunnel(map[string]any{}).Error)
}

func TestIdentifyPatterns(t *testing.T) {
	features := []any{
		map[string]any{"name": "Dashboard", "usage": 85},
		map[string]any{"name": "Reports", "usage": 50},
		map[string]any{"name": "Export", "usage": float64(12)},
	}
	p := IdentifyPatterns([]map[string]any{
		{"source": "mixpanel", "user_metrics": map[string]any{"top_features": features}},
		{"source": "posthog", "funnel": map[string]any{"bottleneck": "Payment"}},
		{"top_features": []any{map[string]any{"name": "API", "usage": 90}}, "bottleneck": "Signup"},
	})

	assert.Len(t, p.HighUsageFeatures, 2)
	assert.Len(t, p.LowUsageFeatures, 1)
	assert.Equal(t, []map[string]any{
		{"source": "posthog", "bottleneck": "Payment"},
		{"source": "unknown", "bottleneck": "Signup"},
	}, p.Bottlenecks)
	assert.Len(t, features, 3, "input slice must not be modified")
}
