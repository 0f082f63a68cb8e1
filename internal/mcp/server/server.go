// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the canned data of one source as an MCP server.
// Pointing a subprocess descriptor at `squash mock-server <source>` exercises
// the full stdio transport without any external credentials.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tombee/squash/internal/connector"
	"github.com/tombee/squash/internal/log"
)

// Server wraps the MCP server and the canned tools of one source.
type Server struct {
	mcpServer   *server.MCPServer
	source      string
	version     string
	tools       []string
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// ServerConfig configures the MCP server
type ServerConfig struct {
	// Source is the data source whose canned data is served (e.g. "zendesk").
	Source string

	// Version is reported in the initialize handshake.
	Version string

	// ToolNames renames capabilities on the wire, mirroring a descriptor's
	// capability_map. Unmapped capabilities keep their name.
	ToolNames map[string]string

	// CallsPerMinute bounds tool calls. Zero selects 600.
	CallsPerMinute int

	// Logger receives server logs. Stdout carries the protocol, so the
	// default logger writes to stderr.
	Logger *slog.Logger
}

// NewServer creates a server for cfg.Source.
func NewServer(cfg ServerConfig) (*Server, error) {
	if len(connector.MockMethods(cfg.Source)) == 0 {
		return nil, fmt.Errorf("no mock data for source %q (known: %v)", cfg.Source, connector.MockSources())
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.CallsPerMinute == 0 {
		cfg.CallsPerMinute = 600
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(&log.Config{Level: "info", Format: log.FormatText, Output: os.Stderr})
	}

	s := &Server{
		mcpServer:   server.NewMCPServer("squash-mock-"+cfg.Source, cfg.Version),
		source:      cfg.Source,
		version:     cfg.Version,
		rateLimiter: NewRateLimiter(cfg.CallsPerMinute),
		logger:      log.WithServer(log.WithComponent(logger, "mock-server"), cfg.Source),
	}
	s.registerTools(cfg.ToolNames)
	return s, nil
}

// registerTools adds one tool per canned capability.
func (s *Server) registerTools(toolNames map[string]string) {
	capabilities := make([]string, 0)
	for capability := range connector.MockMethods(s.source) {
		capabilities = append(capabilities, capability)
	}
	sort.Strings(capabilities)

	for _, capability := range capabilities {
		name := capability
		if mapped := toolNames[capability]; mapped != "" {
			name = mapped
		}
		s.tools = append(s.tools, name)
		s.mcpServer.AddTool(mcp.Tool{
			Name:        name,
			Description: fmt.Sprintf("Canned %s data for %s", s.source, capability),
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{},
			},
			Annotations: mcp.ToolAnnotation{
				ReadOnlyHint: mcp.ToBoolPtr(true),
			},
		}, s.handler(capability))
	}
}

func (s *Server) handler(capability string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !s.rateLimiter.AllowCall() {
			return errorResponse("rate limit exceeded, retry later"), nil
		}
		s.logger.Debug("tool call", log.CapabilityKey, capability)

		data, ok := connector.MockCall(s.source, capability, req.GetArguments())
		if !ok {
			return errorResponse("Mock method mock_" + capability + " not implemented"), nil
		}
		res, err := mcp.NewToolResultJSON(data)
		if err != nil {
			return errorResponse(err.Error()), nil
		}
		return res, nil
	}
}

// Tools returns the registered tool names.
func (s *Server) Tools() []string { return s.tools }

// MCPServer returns the underlying server, for in-process clients.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// Run serves MCP over stdin and stdout until ctx ends or stdin closes.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve serves MCP over the given streams.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("starting mock MCP server", slog.String("version", s.version), slog.Int("tools", len(s.tools)))
	if err := server.NewStdioServer(s.mcpServer).Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

func errorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}
