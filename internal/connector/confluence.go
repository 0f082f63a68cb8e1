package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tombee/squash/internal/jq"
)

var (
	confluenceSearchJQ = jq.MustCompile(
		`{results: [(.results // [])[] | {title, id, url: (._links.webui // ""), type}]}`)
	confluenceDocsJQ = jq.MustCompile(
		`{pages: [(.results // [])[] | {title, id, last_modified: .version.when}]}`)
	confluenceRequirementsJQ = jq.MustCompile(
		`{requirements: [(.results // [])[] | {id, title, url: (._links.webui // ""), status: (.status // "current")}]}`)
	confluenceStoriesJQ = jq.MustCompile(
		`{stories: [(.results // [])[] | {title, id}]}`)
)

func confluenceMethods(deps legacyDeps) (map[string]legacyMethod, error) {
	creds := deps.creds.Confluence
	if err := requireCreds("confluence",
		"CONFLUENCE_DOMAIN", creds.Domain,
		"CONFLUENCE_EMAIL", creds.Email,
		"CONFLUENCE_API_TOKEN", creds.APIToken,
		"CONFLUENCE_SPACE_KEY", creds.Key,
	); err != nil {
		return nil, err
	}

	c := &apiClient{
		http: deps.http,
		base: atlassianHost(creds.Domain) + "/wiki/rest/api",
		auth: func(r *http.Request) error {
			r.SetBasicAuth(creds.Email, creds.APIToken)
			return nil
		},
	}
	space := fmt.Sprintf(`space = "%s"`, cqlEscape(creds.Key))

	search := func(cql func(params map[string]any) string, limit string, p *jq.Program, key string) legacyMethod {
		return func(ctx context.Context, params map[string]any) Result {
			raw, err := c.get(ctx, "/content/search", url.Values{"cql": {cql(params)}, "limit": {limit}})
			if err == nil {
				var out Result
				if out, err = shape(ctx, p, raw); err == nil {
					return out
				}
			}
			return softFail(Result{key: []any{}}, err)
		}
	}
	fixed := func(clause string) func(map[string]any) string {
		return func(map[string]any) string { return space + " AND " + clause }
	}

	return map[string]legacyMethod{
		"search_pages": search(func(params map[string]any) string {
			q := stringParam(params, "query", "product requirements")
			return fmt.Sprintf(`%s AND text ~ "%s"`, space, cqlEscape(q))
		}, "10", confluenceSearchJQ, "results"),
		"get_product_docs": search(fixed(`label = "product-doc"`), "20", confluenceDocsJQ, "pages"),
		"get_requirements": search(fixed(`(label = "requirement" OR label = "prd" OR title ~ "requirement")`), "20", confluenceRequirementsJQ, "requirements"),
		"get_user_stories": search(fixed(`(label = "user-story" OR title ~ "user story")`), "20", confluenceStoriesJQ, "stories"),
	}, nil
}

// cqlEscape escapes a value for a double-quoted CQL string.
func cqlEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
