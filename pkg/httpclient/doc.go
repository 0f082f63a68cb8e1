// Package httpclient builds the *http.Client used by the direct source
// backends (Mixpanel, PostHog, Jira, Confluence, Salesforce) and the LLM
// providers.
//
// Every client carries:
//   - retry with exponential backoff and jitter on 5xx, 408 and 429,
//     honoring Retry-After, for GET, HEAD and OPTIONS only unless
//     AllowNonIdempotentRetry is set
//   - optional per-client request pacing through a token bucket
//   - structured request logs with credentials stripped from the URL
//   - W3C trace context injected from the request context
//   - TLS 1.2 minimum and a pooled transport
//
// # Usage
//
//	cfg := httpclient.DefaultConfig()
//	cfg.RequestsPerSecond = 5
//	client, err := httpclient.New(cfg)
//	if err != nil {
//	    return err
//	}
//	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
//	resp, err := client.Do(req)
//
// Requests whose body cannot be rebuilt (no GetBody) are sent once.
package httpclient
