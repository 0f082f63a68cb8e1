package connector

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tombee/squash/internal/jq"
)

const (
	mixpanelBaseURL   = "https://mixpanel.com/api"
	mixpanelEUBaseURL = "https://eu.mixpanel.com/api"
)

var (
	mixpanelEventsJQ = jq.MustCompile(
		`{events: [(.events // {}) | to_entries[] | {name: .key, count: (.value.total // 0)}], date_range: $range}`,
		"range")
	mixpanelUsersJQ = jq.MustCompile(
		`{total_users: (.total // 0), date_range: $range}`,
		"range")
	mixpanelFunnelListJQ = jq.MustCompile(
		`if length == 0 then null else .[0] | {id: .funnel_id, name: (.name // "Funnel")} end`)
	mixpanelFunnelJQ = jq.MustCompile(
		`{funnel_name: $name, steps: [(.data.steps // [])[] | {step: .event, users: (.count // 0), conversion: (.step_conv_ratio // 0)}]}`,
		"name")
	// The last cohort row with at least two counts wins.
	mixpanelRetentionJQ = jq.MustCompile(`
		def ratio($c; $i; $base): ($c[$i] / $base * 100 | round) / 100;
		{retention: (reduce (.data // [])[] as $row ({};
			($row.counts // []) as $c
			| if ($c | length) > 1 then
				(if $c[0] > 0 then $c[0] else 1 end) as $base
				| .day_1 = ratio($c; 1; $base)
				| if ($c | length) > 7 then .day_7 = ratio($c; 7; $base) else . end
				| if ($c | length) > 30 then .day_30 = ratio($c; 30; $base) else . end
			  else . end))}`)
)

func mixpanelMethods(deps legacyDeps) (map[string]legacyMethod, error) {
	creds := deps.creds.Mixpanel
	if err := requireCreds("mixpanel",
		"MIXPANEL_PROJECT_ID", creds.ProjectID,
		"MIXPANEL_API_SECRET", creds.APISecret,
	); err != nil {
		return nil, err
	}

	base := mixpanelBaseURL
	if creds.EU {
		base = mixpanelEUBaseURL
	}
	if deps.baseURL != "" {
		base = deps.baseURL
	}
	c := &apiClient{
		http: deps.http,
		base: base,
		auth: func(r *http.Request) error {
			r.SetBasicAuth(creds.APISecret, "")
			return nil
		},
	}
	project := func(extra url.Values) url.Values {
		q := url.Values{"project_id": {creds.ProjectID}}
		for k, v := range extra {
			q[k] = v
		}
		return q
	}

	return map[string]legacyMethod{
		"query_events": func(ctx context.Context, _ map[string]any) Result {
			_, _, label := dateRange(deps.now(), 30)
			raw, err := c.get(ctx, "/2.0/events/top", project(url.Values{"limit": {"10"}}))
			if err == nil {
				var out Result
				if out, err = shape(ctx, mixpanelEventsJQ, raw, label); err == nil {
					return out
				}
			}
			return softFail(Result{"events": []any{}, "date_range": label}, err)
		},

		"get_user_metrics": func(ctx context.Context, _ map[string]any) Result {
			_, _, label := dateRange(deps.now(), 30)
			raw, err := c.get(ctx, "/2.0/engage", project(url.Values{"page_size": {"0"}}))
			if err == nil {
				var out Result
				if out, err = shape(ctx, mixpanelUsersJQ, raw, label); err == nil {
					return out
				}
			}
			return softFail(Result{"total_users": 0}, err)
		},

		"get_funnel_data": func(ctx context.Context, params map[string]any) Result {
			from, to, _ := dateRange(deps.now(), 30)
			fail := func(err error) Result {
				return softFail(Result{"funnel_name": "Error", "steps": []any{}}, err)
			}

			raw, err := c.get(ctx, "/2.0/funnels/list", project(nil))
			if err != nil {
				return fail(err)
			}
			first, err := jq.Default.Run(ctx, mixpanelFunnelListJQ, raw)
			if err != nil {
				return fail(err)
			}
			if first == nil {
				return Result{"funnel_name": "No funnels found", "steps": []any{}}
			}
			head, _ := first.(map[string]any)
			name := stringParam(head, "name", "Funnel")
			funnelID := stringParam(params, "funnel_id", formatID(head["id"]))

			raw, err = c.get(ctx, "/2.0/funnels", project(url.Values{
				"funnel_id": {funnelID},
				"from_date": {from},
				"to_date":   {to},
			}))
			if err != nil {
				return fail(err)
			}
			out, err := shape(ctx, mixpanelFunnelJQ, raw, name)
			if err != nil {
				return fail(err)
			}
			return out
		},

		"get_retention_data": func(ctx context.Context, params map[string]any) Result {
			from, to, _ := dateRange(deps.now(), 90)
			raw, err := c.get(ctx, "/2.0/retention", project(url.Values{
				"from_date":  {from},
				"to_date":    {to},
				"born_event": {stringParam(params, "born_event", "")},
				"event":      {stringParam(params, "event", "")},
				"unit":       {"day"},
			}))
			if err == nil {
				var out Result
				if out, err = shape(ctx, mixpanelRetentionJQ, raw); err == nil {
					return out
				}
			}
			return softFail(Result{"retention": map[string]any{}}, err)
		},
	}, nil
}

// formatID renders a JSON id without a trailing ".0".
func formatID(v any) string {
	switch id := v.(type) {
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case string:
		return id
	case nil:
		return ""
	}
	return ""
}
