// Package insights turns a data source connector into a per-source insight
// bundle: one capability call per section, tagged with the source name.
package insights

import (
	"context"
	"strings"

	"github.com/tombee/squash/internal/connector"
	"github.com/tombee/squash/pkg/errors"
)

// Bundle is the insight payload of one source.
type Bundle = map[string]any

// Source is the part of a connector a bundle needs.
type Source interface {
	Name() string
	Capabilities() []string
	Call(ctx context.Context, capability string, params map[string]any) connector.Result
}

// Section binds a bundle key to the capability that fills it.
type Section struct {
	Key        string
	Capability string
}

var known = map[string][]Section{
	"mixpanel": {
		{"user_metrics", "get_user_metrics"},
		{"events", "query_events"},
		{"funnel", "get_funnel_data"},
		{"retention", "get_retention_data"},
	},
	"posthog": {
		{"events", "query_events"},
		{"feature_flags", "get_feature_flags"},
	},
	"zendesk": {
		{"tickets", "get_tickets"},
		{"metrics", "get_ticket_metrics"},
	},
	"intercom": {
		{"conversations", "get_conversations"},
		{"sentiment", "get_customer_sentiment"},
	},
	"salesforce": {
		{"opportunities", "get_opportunities"},
		{"win_loss", "get_win_loss_reasons"},
		{"feedback", "get_customer_feedback"},
	},
	"jira": {
		{"issues", "get_issues"},
		{"sprint", "get_sprint_data"},
		{"backlog", "get_backlog"},
	},
	"confluence": {
		{"requirements", "get_requirements"},
	},
}

// IsKnown reports whether name has a fixed section layout.
func IsKnown(name string) bool {
	_, ok := known[name]
	return ok
}

// Sections returns the layout for a source. Known sources use their fixed
// layout; any other source gets one section per declared capability, keyed
// by the capability without its get_ prefix.
func Sections(name string, capabilities []string) []Section {
	if s, ok := known[name]; ok {
		return s
	}
	out := make([]Section, 0, len(capabilities))
	for _, c := range capabilities {
		out = append(out, Section{Key: strings.TrimPrefix(c, "get_"), Capability: c})
	}
	return out
}

// Collect calls every section of src in order and returns the bundle. The
// error is non-nil when every section failed or ctx ended; the bundle is
// returned either way.
func Collect(ctx context.Context, src Source) (Bundle, error) {
	name := src.Name()
	bundle := Bundle{"source": name}

	sections := Sections(name, src.Capabilities())
	failed := 0
	var last string
	for _, s := range sections {
		if err := ctx.Err(); err != nil {
			return bundle, &errors.SourceError{Source: name, Capability: s.Capability, Message: "cancelled", Cause: err}
		}
		res := src.Call(ctx, s.Capability, nil)
		bundle[s.Key] = res
		if msg, ok := connector.IsError(res); ok {
			failed++
			last = s.Capability + ": " + msg
		}
	}
	if len(sections) > 0 && failed == len(sections) {
		return bundle, &errors.SourceError{Source: name, Message: "all sections failed, last " + last}
	}
	return bundle, nil
}
