package connector

import (
	"context"
	"slices"

	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/mcp"
)

// cannedFunc produces one canned payload. It must build a new value on
// every call so callers may mutate results freely.
type cannedFunc func(params map[string]any) Result

// mockBackend answers from canned data keyed by source name. Unknown
// sources have no canned methods; every declared capability then reports
// "not implemented".
type mockBackend struct {
	name         string
	capabilities []string
	methods      map[string]cannedFunc
}

func newMockBackend(desc *config.ServerDescriptor) *mockBackend {
	return &mockBackend{
		name:         desc.Name,
		capabilities: slices.Clone(desc.Capabilities),
		methods:      MockMethods(desc.Name),
	}
}

func (m *mockBackend) Kind() Kind             { return KindMock }
func (m *mockBackend) State() State           { return mcp.StateReady }
func (m *mockBackend) Capabilities() []string { return m.capabilities }
func (m *mockBackend) Close() error           { return nil }

func (m *mockBackend) Call(_ context.Context, capability string, params map[string]any) (Result, error) {
	if !slices.Contains(m.capabilities, capability) {
		return nil, &UnsupportedError{Server: m.name, Capability: capability}
	}
	fn, ok := m.methods[capability]
	if !ok {
		return errorResult("Mock method mock_" + capability + " not implemented"), nil
	}
	return fn(params), nil
}
