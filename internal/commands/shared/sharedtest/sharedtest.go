// Package sharedtest builds isolated applications for command tests.
package sharedtest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/tombee/squash/internal/commands/shared"
	"github.com/tombee/squash/internal/config"
)

// Servers is a registry of two mock sources.
const Servers = `
servers:
  mixpanel:
    type: analytics
    description: Product analytics
    capabilities: [query_events, get_user_metrics, get_funnel_data, get_retention_data]
  zendesk:
    type: support
    description: Customer support tickets
    capabilities: [get_tickets, get_ticket_metrics]
`

// Settings returns offline, mock-backed settings rooted in a temp dir.
// overrides are applied on top as environment values.
func Settings(t *testing.T, overrides map[string]string) *config.Settings {
	t.Helper()
	dir := t.TempDir()
	registry := filepath.Join(dir, "servers.yaml")
	require.NoError(t, os.WriteFile(registry, []byte(Servers), 0o644))

	env := map[string]string{
		"LLM_PROVIDER":   "offline",
		"USE_MOCK_MCP":   "true",
		"UPLOAD_DIR":     filepath.Join(dir, "uploads"),
		"CACHE_DIR":      filepath.Join(dir, "cache"),
		"DB_PATH":        filepath.Join(dir, "squash.db"),
		"SERVERS_CONFIG": registry,
		"TRACE_EXPORTER": "none",
	}
	for k, v := range overrides {
		env[k] = v
	}
	s, err := config.FromEnv(context.Background(), func(k string) string { return env[k] }, nil)
	require.NoError(t, err)
	return s
}

// App builds an app from opts, filling in test settings, a private metrics
// registry and a log buffer. It is closed when the test ends.
func App(t *testing.T, opts shared.AppOptions) (*shared.App, *bytes.Buffer) {
	t.Helper()
	if opts.Settings == nil {
		opts.Settings = Settings(t, nil)
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}
	logs := &bytes.Buffer{}
	if opts.LogOutput == nil {
		opts.LogOutput = logs
	}
	app, err := shared.NewApp(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app, logs
}
