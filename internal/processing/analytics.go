package processing

import (
	"fmt"
	"strings"
)

// UserMetrics is the normalized user metrics payload.
type UserMetrics struct {
	TotalUsers      any   `json:"total_users"`
	ActiveUsers     any   `json:"active_users"`
	RetentionRate   any   `json:"retention_rate"`
	EngagementScore any   `json:"engagement_score"`
	TopFeatures     []any `json:"top_features"`
}

// ProcessUserMetrics normalizes a get_user_metrics payload. Missing counts
// default to 0 and a missing session duration to "N/A".
func ProcessUserMetrics(data map[string]any) UserMetrics {
	get := func(key string, def any) any {
		if v, ok := data[key]; ok && v != nil {
			return v
		}
		return def
	}
	features := asList(data["top_features"])
	if features == nil {
		features = []any{}
	}
	return UserMetrics{
		TotalUsers:      get("total_users", 0),
		ActiveUsers:     get("active_users", 0),
		RetentionRate:   get("retention_rate", 0),
		EngagementScore: get("avg_session_duration", "N/A"),
		TopFeatures:     features,
	}
}

// EventSummary splits events by the sign of their trend.
type EventSummary struct {
	TotalEvents  int   `json:"total_events"`
	Events       []any `json:"events"`
	TrendingUp   []any `json:"trending_up"`
	TrendingDown []any `json:"trending_down"`
}

// ProcessEvents summarizes a query_events payload.
func ProcessEvents(data map[string]any) EventSummary {
	events := asList(data["events"])
	s := EventSummary{TotalEvents: len(events), Events: events, TrendingUp: []any{}, TrendingDown: []any{}}
	if s.Events == nil {
		s.Events = []any{}
	}
	for _, e := range events {
		trend, _ := field(e, "trend")
		t := ""
		if trend != nil {
			t = fmt.Sprint(trend)
		}
		if strings.Contains(t, "+") {
			s.TrendingUp = append(s.TrendingUp, e)
		}
		if strings.Contains(t, "-") {
			s.TrendingDown = append(s.TrendingDown, e)
		}
	}
	return s
}

// DropOff is the conversion lost between two funnel steps.
type DropOff struct {
	From        any     `json:"from"`
	To          any     `json:"to"`
	DropOffRate float64 `json:"drop_off_rate"`
}

// FunnelSummary is the normalized funnel analysis.
type FunnelSummary struct {
	FunnelName        any       `json:"funnel_name,omitempty"`
	TotalSteps        int       `json:"total_steps"`
	OverallConversion float64   `json:"overall_conversion"`
	Bottleneck        any       `json:"bottleneck,omitempty"`
	DropOffs          []DropOff `json:"drop_offs,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// ProcessFunnel computes drop-offs between consecutive steps. A funnel
// without steps yields an error summary.
func ProcessFunnel(data map[string]any) FunnelSummary {
	steps := asList(data["steps"])
	if len(steps) == 0 {
		return FunnelSummary{Error: "No funnel data"}
	}
	conversion := func(step any) float64 {
		v, _ := field(step, "conversion")
		return asFloat(v)
	}
	name := func(step any) any {
		v, _ := field(step, "step")
		return v
	}

	drops := make([]DropOff, 0, len(steps)-1)
	for i := 0; i < len(steps)-1; i++ {
		drops = append(drops, DropOff{
			From:        name(steps[i]),
			To:          name(steps[i+1]),
			DropOffRate: conversion(steps[i]) - conversion(steps[i+1]),
		})
	}
	return FunnelSummary{
		FunnelName:        data["funnel_name"],
		TotalSteps:        len(steps),
		OverallConversion: conversion(steps[len(steps)-1]),
		Bottleneck:        data["bottleneck"],
		DropOffs:          drops,
	}
}

// Patterns are cross-source analytics observations.
type Patterns struct {
	HighUsageFeatures []any            `json:"high_usage_features"`
	LowUsageFeatures  []any            `json:"low_usage_features"`
	Bottlenecks       []map[string]any `json:"bottlenecks"`
	Opportunities     []any            `json:"opportunities"`
}

// IdentifyPatterns classifies feature usage above 70 as high and below 30
// as low, and collects every reported bottleneck with its source. Usage is
// read from top-level top_features or from a user_metrics section.
func IdentifyPatterns(data []map[string]any) Patterns {
	p := Patterns{
		HighUsageFeatures: []any{},
		LowUsageFeatures:  []any{},
		Bottlenecks:       []map[string]any{},
		Opportunities:     []any{},
	}
	for _, item := range data {
		source := getString(item, "source")
		if source == "" {
			source = "unknown"
		}

		features := append([]any(nil), asList(item["top_features"])...)
		if nested, ok := field(item["user_metrics"], "top_features"); ok {
			features = append(features, asList(nested)...)
		}
		for _, f := range features {
			usage, _ := field(f, "usage")
			switch u := asFloat(usage); {
			case u > 70:
				p.HighUsageFeatures = append(p.HighUsageFeatures, f)
			case u < 30:
				p.LowUsageFeatures = append(p.LowUsageFeatures, f)
			}
		}

		bottleneck := item["bottleneck"]
		if b, ok := field(item["funnel"], "bottleneck"); ok && bottleneck == nil {
			bottleneck = b
		}
		if bottleneck != nil && bottleneck != "" {
			p.Bottlenecks = append(p.Bottlenecks, map[string]any{"source": source, "bottleneck": bottleneck})
		}
	}
	return p
}
