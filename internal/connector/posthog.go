package connector

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tombee/squash/internal/jq"
)

var (
	posthogEventsJQ = jq.MustCompile(
		`{events: [(.results // [])[] | {event: .name, count: (.query_usage_30_day // 0), volume: (.volume_30_day // 0)}]}`)
	posthogFlagsJQ = jq.MustCompile(
		`{flags: [(.results // [])[] | {name: .key, enabled: (.active // false), rollout: (.rollout_percentage // 0), filters: (.filters // {})}]}`)
	posthogRecordingsJQ = jq.MustCompile(
		`{recordings: [(.results // [])[] | {id, duration: .recording_duration, start_time, person: ((.person.distinct_ids // [null])[0])}], total: (.count // 0)}`)
	posthogCohortsJQ = jq.MustCompile(
		`{cohorts: [(.results // [])[] | {name, count: (.count // 0), created_at}]}`)
)

func posthogMethods(deps legacyDeps) (map[string]legacyMethod, error) {
	creds := deps.creds.PostHog
	if err := requireCreds("posthog",
		"POSTHOG_API_KEY", creds.APIKey,
		"POSTHOG_PROJECT_ID", creds.ProjectID,
	); err != nil {
		return nil, err
	}

	c := &apiClient{
		http: deps.http,
		base: creds.Host + "/api/projects/" + url.PathEscape(creds.ProjectID),
		auth: func(r *http.Request) error {
			r.Header.Set("Authorization", "Bearer "+creds.APIKey)
			return nil
		},
	}

	list := func(path string, query url.Values, p *jq.Program, key string) legacyMethod {
		return func(ctx context.Context, _ map[string]any) Result {
			raw, err := c.get(ctx, path, query)
			if err == nil {
				var out Result
				if out, err = shape(ctx, p, raw); err == nil {
					return out
				}
			}
			return softFail(Result{key: []any{}}, err)
		}
	}

	return map[string]legacyMethod{
		"query_events":           list("/event_definitions", url.Values{"limit": {"20"}}, posthogEventsJQ, "events"),
		"get_feature_flags":      list("/feature_flags", url.Values{"limit": {"50"}}, posthogFlagsJQ, "flags"),
		"get_session_recordings": list("/session_recordings", url.Values{"limit": {"10"}}, posthogRecordingsJQ, "recordings"),
		"get_user_cohorts":       list("/cohorts", nil, posthogCohortsJQ, "cohorts"),
	}, nil
}
