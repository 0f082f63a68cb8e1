// Package connector binds each configured data source to one backend
// (canned mock data, an MCP server subprocess, or a direct REST client) and
// exposes them through a Manager.
//
// Calls never fail at the Go level. Every failure, including a panic inside
// a backend, is returned as a result map carrying an "error" key so the
// pipeline can keep going with partial data.
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/log"
	"github.com/tombee/squash/internal/mcp"
	"github.com/tombee/squash/pkg/httpclient"
)

// Options configures backend selection and construction.
type Options struct {
	// ForceMock selects the mock backend for every source.
	ForceMock bool

	// Credentials feed the direct REST backends.
	Credentials config.SourceCredentials

	// HTTPClient is used by the REST backends. When nil each source gets
	// its own paced client.
	HTTPClient *http.Client

	// Dial overrides how subprocess servers are reached.
	Dial mcp.DialFunc

	Logger *slog.Logger

	// Now is the clock used for date-ranged queries.
	Now func() time.Time
}

// Connector is the live binding of one server descriptor to its backend.
type Connector struct {
	desc    *config.ServerDescriptor
	backend Backend
	logger  *slog.Logger
}

// ServerInfo describes a connector for listings.
type ServerInfo struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	IsMock       bool     `json:"is_mock"`
	Kind         Kind     `json:"kind"`
	State        State    `json:"state"`
}

// New validates desc and selects its backend:
//
//  1. forced mock, or mock: true on the descriptor
//  2. a command launches an MCP subprocess, falling back to mock on failure
//  3. a known REST source gets its direct client, falling back to mock
//     when credentials are missing
//  4. anything else is mock
//
// Only an invalid descriptor is an error.
func New(ctx context.Context, desc *config.ServerDescriptor, opts Options) (*Connector, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = log.WithServer(log.WithComponent(logger, "connector"), desc.Name)

	c := &Connector{desc: desc, logger: logger}
	c.backend = c.selectBackend(ctx, opts)
	logger.Info("connector ready", "kind", c.backend.Kind())
	return c, nil
}

func (c *Connector) selectBackend(ctx context.Context, opts Options) Backend {
	desc := c.desc
	switch {
	case opts.ForceMock || desc.Mock:
		return newMockBackend(desc)

	case desc.IsSubprocess():
		b, err := connectSubprocess(ctx, desc, opts.Dial, opts.Logger)
		if err == nil {
			return b
		}
		c.logger.Warn("subprocess connect failed, using mock data", log.Error(err))
		fallbacks.WithLabelValues(desc.Name, string(KindSubprocess)).Inc()
		return newMockBackend(desc)

	case slices.Contains(LegacySources, desc.Name):
		b, err := newLegacyBackend(desc, legacyDeps{
			creds: opts.Credentials,
			http:  legacyHTTPClient(opts.HTTPClient),
			now:   clock(opts.Now),
		})
		if err == nil {
			return b
		}
		c.logger.Warn("direct API unavailable, using mock data", log.Error(err))
		fallbacks.WithLabelValues(desc.Name, string(KindLegacy)).Inc()
		return newMockBackend(desc)
	}
	return newMockBackend(desc)
}

func legacyHTTPClient(hc *http.Client) *http.Client {
	if hc != nil {
		return hc
	}
	cfg := httpclient.DefaultConfig()
	cfg.RequestsPerSecond = 5
	cfg.Burst = 5
	client, err := httpclient.New(cfg)
	if err != nil {
		return http.DefaultClient
	}
	return client
}

func clock(now func() time.Time) func() time.Time {
	if now != nil {
		return now
	}
	return time.Now
}

// Name returns the server name.
func (c *Connector) Name() string { return c.desc.Name }

// Type returns the source category.
func (c *Connector) Type() string { return c.desc.Type }

// Descriptor returns the descriptor the connector was built from.
func (c *Connector) Descriptor() *config.ServerDescriptor { return c.desc }

// Kind returns the resolved backend kind.
func (c *Connector) Kind() Kind { return c.backend.Kind() }

// State returns the backend connectivity state.
func (c *Connector) State() State { return c.backend.State() }

// IsMock reports whether canned data is served.
func (c *Connector) IsMock() bool { return c.backend.Kind() == KindMock }

// Capabilities returns the declared capabilities.
func (c *Connector) Capabilities() []string { return slices.Clone(c.desc.Capabilities) }

// HasCapability reports whether capability is declared.
func (c *Connector) HasCapability(capability string) bool { return c.desc.HasCapability(capability) }

// Info returns the listing view of the connector.
func (c *Connector) Info() ServerInfo {
	return ServerInfo{
		Name:         c.desc.Name,
		Type:         c.desc.Type,
		Description:  c.desc.Description,
		Capabilities: c.Capabilities(),
		IsMock:       c.IsMock(),
		Kind:         c.Kind(),
		State:        c.State(),
	}
}

// Call invokes capability. It never returns a Go error: failures and
// backend panics come back as {"error": msg}.
func (c *Connector) Call(ctx context.Context, capability string, params map[string]any) (res Result) {
	start := time.Now()
	kind := c.backend.Kind()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("connector call panicked", log.CapabilityKey, capability, "panic", r)
			res = errorResult(fmt.Sprint(r))
		}
		outcome := "success"
		if _, failed := IsError(res); failed {
			outcome = "error"
		}
		calls.WithLabelValues(c.desc.Name, string(kind), outcome).Inc()
		callDuration.WithLabelValues(c.desc.Name, string(kind)).Observe(time.Since(start).Seconds())
	}()

	c.logger.Debug("calling capability", log.CapabilityKey, capability)
	res, err := c.backend.Call(ctx, capability, params)
	if err != nil {
		c.logger.Error("connector call failed", log.CapabilityKey, capability, log.Error(err))
		return errorResult(err.Error())
	}
	if res == nil {
		res = Result{}
	}
	return res
}

// Disconnect releases the backend. It is safe to call more than once.
func (c *Connector) Disconnect() error {
	return c.backend.Close()
}
