package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/jq"
	"github.com/tombee/squash/internal/mcp"
	"github.com/tombee/squash/pkg/errors"
)

// LegacySources are the sources with a direct HTTP implementation.
var LegacySources = []string{"mixpanel", "posthog", "jira", "confluence", "salesforce"}

// maxResponseSize caps how much of a source response is read.
const maxResponseSize = 10 << 20

// legacyMethod fetches one capability. It never fails: errors are folded
// into the returned shape under "error".
type legacyMethod func(ctx context.Context, params map[string]any) Result

// legacyBackend calls a source REST API directly.
type legacyBackend struct {
	name         string
	capabilities []string
	methods      map[string]legacyMethod
}

// legacyDeps are shared by the per-source constructors.
type legacyDeps struct {
	creds config.SourceCredentials
	http  *http.Client
	now   func() time.Time

	// baseURL replaces a fixed vendor host. Tests point it at httptest.
	baseURL string
}

func newLegacyBackend(desc *config.ServerDescriptor, deps legacyDeps) (*legacyBackend, error) {
	var (
		methods map[string]legacyMethod
		err     error
	)
	switch desc.Name {
	case "mixpanel":
		methods, err = mixpanelMethods(deps)
	case "posthog":
		methods, err = posthogMethods(deps)
	case "jira":
		methods, err = jiraMethods(deps)
	case "confluence":
		methods, err = confluenceMethods(deps)
	case "salesforce":
		methods, err = salesforceMethods(deps)
	default:
		return nil, &errors.NotFoundError{Resource: "legacy backend", ID: desc.Name}
	}
	if err != nil {
		return nil, err
	}
	return &legacyBackend{
		name:         desc.Name,
		capabilities: slices.Clone(desc.Capabilities),
		methods:      methods,
	}, nil
}

func (b *legacyBackend) Kind() Kind             { return KindLegacy }
func (b *legacyBackend) State() State           { return mcp.StateReady }
func (b *legacyBackend) Capabilities() []string { return b.capabilities }
func (b *legacyBackend) Close() error           { return nil }

func (b *legacyBackend) Call(ctx context.Context, capability string, params map[string]any) (Result, error) {
	if !slices.Contains(b.capabilities, capability) {
		return nil, &UnsupportedError{Server: b.name, Capability: capability}
	}
	fn, ok := b.methods[capability]
	if !ok {
		return errorResult("Method api_" + capability + " not implemented"), nil
	}
	if params == nil {
		params = map[string]any{}
	}
	return fn(ctx, params), nil
}

// requireCreds fails with a ConfigError naming the first empty setting.
func requireCreds(source string, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return &errors.ConfigError{Key: pairs[i], Reason: source + " credentials are incomplete"}
		}
	}
	return nil
}

// apiClient issues authenticated GETs against one REST base URL.
type apiClient struct {
	http *http.Client
	base string
	auth func(*http.Request) error
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %s", e.Status)
	}
	return fmt.Sprintf("HTTP %s: %s", e.Status, e.Body)
}

// get fetches base+path with query and returns the raw JSON body.
func (c *apiClient) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		if err := c.auth(req); err != nil {
			return nil, err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Wrap(err, "reading response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: snippet}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("invalid JSON response from %s", sanitizePath(path))
	}
	return body, nil
}

func sanitizePath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}

// shape runs a jq program over a raw response and asserts an object.
func shape(ctx context.Context, p *jq.Program, raw json.RawMessage, vars ...any) (Result, error) {
	return jq.Map(ctx, p, raw, vars...)
}

// softFail attaches err to a fallback shape.
func softFail(fallback Result, err error) Result {
	fallback["error"] = err.Error()
	return fallback
}

// dateRange renders "YYYY-MM-DD to YYYY-MM-DD" ending at now.
func dateRange(now time.Time, days int) (from, to, label string) {
	to = now.Format(time.DateOnly)
	from = now.AddDate(0, 0, -days).Format(time.DateOnly)
	return from, to, from + " to " + to
}

func stringParam(params map[string]any, key, def string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
		if v != nil {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return def
}
