package connector

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/log"
)

// analyticsQueries maps QueryAllAnalytics kinds to capabilities.
var analyticsQueries = map[string]string{
	"user_metrics": "get_user_metrics",
	"events":       "query_events",
	"retention":    "get_retention_data",
}

// Manager owns one Connector per configured server. Lookups are safe for
// concurrent use; pipeline runs serialize through Acquire.
type Manager struct {
	logger *slog.Logger

	mu         sync.RWMutex
	connectors map[string]*Connector

	// lease holds a token while a run owns the manager.
	lease chan struct{}
}

// NewManager builds a connector for every descriptor in reg, in name order.
// Descriptors that fail validation are logged and skipped.
func NewManager(ctx context.Context, reg *config.Registry, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		logger:     log.WithComponent(logger, "manager"),
		connectors: make(map[string]*Connector),
		lease:      make(chan struct{}, 1),
	}
	if reg == nil {
		return m
	}
	for _, name := range reg.Names() {
		desc, _ := reg.Get(name)
		c, err := New(ctx, desc, opts)
		if err != nil {
			m.logger.Error("failed to initialize server", log.ServerKey, name, log.Error(err))
			continue
		}
		m.connectors[name] = c
		m.logger.Info("initialized server", log.ServerKey, name, "kind", c.Kind())
	}
	return m
}

// GetServer returns the connector for name.
func (m *Manager) GetServer(name string) (*Connector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.connectors[name]
	return c, ok
}

// Servers returns every connector sorted by name.
func (m *Manager) Servers() []*Connector {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Connector, 0, len(m.connectors))
	for _, c := range m.connectors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// CallTool calls capability on the named server.
func (m *Manager) CallTool(ctx context.Context, server, capability string, params map[string]any) Result {
	c, ok := m.GetServer(server)
	if !ok {
		return errorResult("Server " + server + " not found")
	}
	return c.Call(ctx, capability, params)
}

// GetServersByType returns the connectors of one category, sorted by name.
func (m *Manager) GetServersByType(serverType string) []*Connector {
	var out []*Connector
	for _, c := range m.Servers() {
		if c.Type() == serverType {
			out = append(out, c)
		}
	}
	return out
}

// ListAllCapabilities maps server names to declared capabilities.
func (m *Manager) ListAllCapabilities() map[string][]string {
	out := map[string][]string{}
	for _, c := range m.Servers() {
		out[c.Name()] = c.Capabilities()
	}
	return out
}

// GetAllServerInfo lists every connector.
func (m *Manager) GetAllServerInfo() []ServerInfo {
	servers := m.Servers()
	out := make([]ServerInfo, 0, len(servers))
	for _, c := range servers {
		out = append(out, c.Info())
	}
	return out
}

// QueryAllAnalytics runs one query kind (user_metrics, events or retention)
// against every analytics server that declares it. Unknown kinds yield an
// empty map.
func (m *Manager) QueryAllAnalytics(ctx context.Context, kind string) map[string]Result {
	out := map[string]Result{}
	capability, ok := analyticsQueries[kind]
	if !ok {
		return out
	}
	for _, c := range m.GetServersByType(config.TypeAnalytics) {
		if c.HasCapability(capability) {
			out[c.Name()] = c.Call(ctx, capability, nil)
		}
	}
	return out
}

// QueryAllSupport collects tickets (or conversations) and sentiment from
// every support server.
func (m *Manager) QueryAllSupport(ctx context.Context) map[string]map[string]Result {
	out := map[string]map[string]Result{}
	for _, c := range m.GetServersByType(config.TypeSupport) {
		data := map[string]Result{}
		switch {
		case c.HasCapability("get_tickets"):
			data["tickets"] = c.Call(ctx, "get_tickets", nil)
		case c.HasCapability("get_conversations"):
			data["conversations"] = c.Call(ctx, "get_conversations", nil)
		}
		if c.HasCapability("get_customer_sentiment") {
			data["sentiment"] = c.Call(ctx, "get_customer_sentiment", nil)
		}
		out[c.Name()] = data
	}
	return out
}

// Acquire takes the run lease, blocking until it is free or ctx ends.
// The returned release func is idempotent.
func (m *Manager) Acquire(ctx context.Context) (func(), error) {
	select {
	case m.lease <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-m.lease })
	}, nil
}

// Shutdown disconnects every connector and empties the manager. Later
// calls are no-ops.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	connectors := m.connectors
	m.connectors = map[string]*Connector{}
	m.mu.Unlock()

	if len(connectors) == 0 {
		return
	}
	m.logger.Info("shutting down server manager")
	names := make([]string, 0, len(connectors))
	for name := range connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := connectors[name].Disconnect(); err != nil {
			m.logger.Warn("error disconnecting server", log.ServerKey, name, log.Error(err))
			continue
		}
		m.logger.Info("disconnected server", log.ServerKey, name)
	}
}
