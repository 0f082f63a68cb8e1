package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tombee/squash/internal/jq"
)

var (
	jiraTotalJQ   = jq.MustCompile(`.total // 0`)
	jiraBacklogJQ = jq.MustCompile(`{
		total_items: (.total // 0),
		top_priority: [(.issues // [])[] | {
			key,
			summary: .fields.summary,
			priority: .fields.priority.name,
			votes: (.fields.votes.votes // 0),
			type: .fields.issuetype.name
		}]
	}`)
	jiraFirstIDJQ = jq.MustCompile(`(.values // [])[0].id`)
	jiraSprintJQ  = jq.MustCompile(`(.values // [])[0] | if . == null then null else {id, name, startDate, endDate} end`)
	jiraSprintIssuesJQ = jq.MustCompile(`{
		total: (.total // 0),
		done: ([(.issues // [])[] | select(.fields.status.statusCategory.key == "done")] | length)
	}`)
	jiraVelocityJQ = jq.MustCompile(
		`{velocity: [(.values // [])[] | {sprint: .name, completed_issues: (.completeDate != null)}]}`)
)

// jiraIssueTypes are counted by get_issues, reported lower-cased.
var jiraIssueTypes = []string{"Bug", "Story", "Task", "Epic"}

func jiraMethods(deps legacyDeps) (map[string]legacyMethod, error) {
	creds := deps.creds.Jira
	if err := requireCreds("jira",
		"JIRA_DOMAIN", creds.Domain,
		"JIRA_EMAIL", creds.Email,
		"JIRA_API_TOKEN", creds.APIToken,
		"JIRA_PROJECT_KEY", creds.Key,
	); err != nil {
		return nil, err
	}

	auth := func(r *http.Request) error {
		r.SetBasicAuth(creds.Email, creds.APIToken)
		return nil
	}
	host := atlassianHost(creds.Domain)
	api := &apiClient{http: deps.http, base: host + "/rest/api/3", auth: auth}
	agile := &apiClient{http: deps.http, base: host + "/rest/agile/1.0", auth: auth}
	key := creds.Key

	count := func(ctx context.Context, jql string) (int, error) {
		raw, err := api.get(ctx, "/search", url.Values{"jql": {jql}, "maxResults": {"0"}})
		if err != nil {
			return 0, err
		}
		v, err := jq.Default.Run(ctx, jiraTotalJQ, raw)
		if err != nil {
			return 0, err
		}
		n, _ := v.(float64)
		return int(n), nil
	}

	boardID := func(ctx context.Context) (string, error) {
		raw, err := agile.get(ctx, "/board", url.Values{"projectKeyOrId": {key}, "maxResults": {"1"}})
		if err != nil {
			return "", err
		}
		v, err := jq.Default.Run(ctx, jiraFirstIDJQ, raw)
		if err != nil {
			return "", err
		}
		return formatID(v), nil
	}

	return map[string]legacyMethod{
		"get_issues": func(ctx context.Context, _ map[string]any) Result {
			fail := func(err error) Result { return softFail(Result{"total_issues": 0}, err) }

			total, err := count(ctx, fmt.Sprintf("project = %s ORDER BY updated DESC", key))
			if err != nil {
				return fail(err)
			}
			byType := map[string]any{}
			for _, t := range jiraIssueTypes {
				n, err := count(ctx, fmt.Sprintf("project = %s AND issuetype = %s", key, t))
				if err != nil {
					return fail(err)
				}
				byType[strings.ToLower(t)] = n
			}
			open, err := count(ctx, fmt.Sprintf("project = %s AND status != Done", key))
			if err != nil {
				return fail(err)
			}
			inProgress, err := count(ctx, fmt.Sprintf(`project = %s AND status = "In Progress"`, key))
			if err != nil {
				return fail(err)
			}
			return Result{
				"total_issues": total,
				"open_issues":  open,
				"in_progress":  inProgress,
				"by_type":      byType,
			}
		},

		"get_sprint_data": func(ctx context.Context, _ map[string]any) Result {
			fail := func(err error) Result { return softFail(Result{"current_sprint": "Error"}, err) }

			board, err := boardID(ctx)
			if err != nil {
				return fail(err)
			}
			if board == "" {
				return Result{"current_sprint": "No board found", "error": "No board"}
			}
			raw, err := agile.get(ctx, "/board/"+board+"/sprint", url.Values{"state": {"active"}})
			if err != nil {
				return fail(err)
			}
			v, err := jq.Default.Run(ctx, jiraSprintJQ, raw)
			if err != nil {
				return fail(err)
			}
			sprint, ok := v.(map[string]any)
			if !ok {
				return Result{"current_sprint": "No active sprint"}
			}
			raw, err = agile.get(ctx, "/sprint/"+formatID(sprint["id"])+"/issue", url.Values{"maxResults": {"100"}})
			if err != nil {
				return fail(err)
			}
			issues, err := shape(ctx, jiraSprintIssuesJQ, raw)
			if err != nil {
				return fail(err)
			}
			return Result{
				"current_sprint": sprint["name"],
				"total_issues":   issues["total"],
				"completed":      issues["done"],
				"start_date":     sprint["startDate"],
				"end_date":       sprint["endDate"],
			}
		},

		"get_backlog": func(ctx context.Context, _ map[string]any) Result {
			raw, err := api.get(ctx, "/search", url.Values{
				"jql":        {fmt.Sprintf("project = %s AND status = Backlog ORDER BY priority ASC, votes DESC", key)},
				"maxResults": {"20"},
				"fields":     {"summary,priority,votes,issuetype"},
			})
			if err == nil {
				var out Result
				if out, err = shape(ctx, jiraBacklogJQ, raw); err == nil {
					return out
				}
			}
			return softFail(Result{"total_items": 0, "top_priority": []any{}}, err)
		},

		"get_velocity": func(ctx context.Context, _ map[string]any) Result {
			fail := func(err error) Result { return softFail(Result{"velocity": []any{}}, err) }

			board, err := boardID(ctx)
			if err != nil {
				return fail(err)
			}
			if board == "" {
				return Result{"velocity": []any{}}
			}
			raw, err := agile.get(ctx, "/board/"+board+"/sprint", url.Values{
				"state":      {"closed"},
				"maxResults": {strconv.Itoa(5)},
			})
			if err != nil {
				return fail(err)
			}
			out, err := shape(ctx, jiraVelocityJQ, raw)
			if err != nil {
				return fail(err)
			}
			return out
		},
	}, nil
}

// atlassianHost turns a bare cloud domain into a base URL. Domains that
// already carry a scheme are used as-is.
func atlassianHost(domain string) string {
	domain = strings.TrimRight(domain, "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}
