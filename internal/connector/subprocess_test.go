package connector_test

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/connector"
	"github.com/tombee/squash/internal/log"
	"github.com/tombee/squash/internal/mcp"
	"github.com/tombee/squash/internal/mcp/server"
)

// inProcessDial serves the canned data of cfg.Name over an in-process MCP
// transport, renaming tools the same way the descriptor maps them.
func inProcessDial(ctx context.Context, cfg mcp.SessionConfig) (mcp.Client, error) {
	s, err := server.NewServer(server.ServerConfig{
		Source:    cfg.Name,
		ToolNames: cfg.CapabilityMap,
		Logger:    log.Discard(),
	})
	if err != nil {
		return nil, err
	}
	c, err := client.NewInProcessClient(s.MCPServer())
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func TestSubprocessBackend_MockServer(t *testing.T) {
	desc := &config.ServerDescriptor{
		Name:          "zendesk",
		Type:          config.TypeSupport,
		Capabilities:  []string{"get_tickets", "get_ticket_metrics"},
		Command:       "squash",
		Args:          []string{"mock-server", "zendesk"},
		CapabilityMap: map[string]string{"get_tickets": "list_tickets"},
	}
	c, err := connector.New(context.Background(), desc, connector.Options{Dial: inProcessDial, Logger: log.Discard()})
	require.NoError(t, err)
	defer c.Disconnect()

	assert.Equal(t, connector.KindSubprocess, c.Kind())
	assert.Equal(t, mcp.StateReady, c.State())
	assert.False(t, c.IsMock())

	res := c.Call(context.Background(), "get_tickets", nil)
	_, failed := connector.IsError(res)
	require.False(t, failed, res)
	assert.EqualValues(t, 456, res["total_tickets"])

	want, _ := connector.MockCall("zendesk", "get_ticket_metrics", nil)
	got := c.Call(context.Background(), "get_ticket_metrics", nil)
	assert.Equal(t, want["trend"], got["trend"])

	res = c.Call(context.Background(), "get_customer_sentiment", nil)
	_, failed = connector.IsError(res)
	assert.True(t, failed)
}

func TestSubprocessBackend_DisconnectThenCall(t *testing.T) {
	desc := &config.ServerDescriptor{
		Name:         "intercom",
		Type:         config.TypeSupport,
		Capabilities: []string{"get_conversations"},
		Command:      "squash",
	}
	c, err := connector.New(context.Background(), desc, connector.Options{Dial: inProcessDial, Logger: log.Discard()})
	require.NoError(t, err)

	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Disconnect())

	_, failed := connector.IsError(c.Call(context.Background(), "get_conversations", nil))
	assert.True(t, failed)
}

func TestManager_MixedBackends(t *testing.T) {
	reg := config.NewRegistry(
		&config.ServerDescriptor{
			Name: "intercom", Type: config.TypeSupport,
			Capabilities: []string{"get_conversations", "get_customer_sentiment"},
			Command:      "squash",
		},
		&config.ServerDescriptor{
			Name: "zendesk", Type: config.TypeSupport,
			Capabilities: []string{"get_tickets"},
		},
	)
	m := connector.NewManager(context.Background(), reg, connector.Options{Dial: inProcessDial, Logger: log.Discard()})
	defer m.Shutdown()

	intercom, ok := m.GetServer("intercom")
	require.True(t, ok)
	assert.Equal(t, connector.KindSubprocess, intercom.Kind())

	zendesk, ok := m.GetServer("zendesk")
	require.True(t, ok)
	assert.Equal(t, connector.KindMock, zendesk.Kind())

	support := m.QueryAllSupport(context.Background())
	assert.Equal(t, "positive", support["intercom"]["sentiment"]["overall_sentiment"])
	assert.EqualValues(t, 456, support["zendesk"]["tickets"]["total_tickets"])
}
