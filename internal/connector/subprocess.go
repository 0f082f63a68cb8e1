package connector

import (
	"context"
	"log/slog"
	"slices"

	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/mcp"
)

// subprocessBackend forwards calls to an MCP server process.
type subprocessBackend struct {
	capabilities []string
	session      *mcp.Session
}

// connectSubprocess launches the server and completes the handshake, or
// returns the failure so the caller can fall back.
func connectSubprocess(ctx context.Context, desc *config.ServerDescriptor, dial mcp.DialFunc, logger *slog.Logger) (*subprocessBackend, error) {
	session := mcp.NewSession(mcp.SessionConfig{
		Name:          desc.Name,
		Command:       desc.Command,
		Args:          desc.Args,
		Env:           desc.Env,
		CapabilityMap: desc.CapabilityMap,
		CallTimeout:   desc.CallTimeout(),
		Dial:          dial,
		Logger:        logger,
	})
	if err := session.Connect(ctx); err != nil {
		return nil, err
	}
	return &subprocessBackend{capabilities: slices.Clone(desc.Capabilities), session: session}, nil
}

func (b *subprocessBackend) Kind() Kind             { return KindSubprocess }
func (b *subprocessBackend) State() State           { return b.session.State() }
func (b *subprocessBackend) Capabilities() []string { return b.capabilities }

// Call does not check the declared capability list: the discovered tool
// set is authoritative for subprocess servers.
func (b *subprocessBackend) Call(ctx context.Context, capability string, params map[string]any) (Result, error) {
	return b.session.Call(ctx, capability, params), nil
}

func (b *subprocessBackend) Close() error {
	return b.session.Disconnect()
}
