// Package mockserver implements the mock-server command, which serves one
// source's canned data as a stdio MCP server so a descriptor's command can
// point back at squash itself.
package mockserver

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tombee/squash/internal/commands/completion"
	"github.com/tombee/squash/internal/commands/shared"
	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/log"
	"github.com/tombee/squash/internal/mcp/server"
)

// NewCommand creates the mock-server command.
func NewCommand() *cobra.Command {
	var (
		server         string
		callsPerMinute int
	)

	cmd := &cobra.Command{
		Use:   "mock-server <source>",
		Short: "Serve a source's mock data over stdio MCP",
		Long: `Start an MCP server on stdin/stdout exposing the canned data of one
source (zendesk, intercom, mixpanel, ...) as read-only tools.

Point a server descriptor at it to exercise the subprocess transport
without external credentials:

  servers:
    zendesk:
      type: support
      capabilities: [get_tickets, search_tickets]
      command: squash
      args: ["mock-server", "zendesk"]

With --server the descriptor's capability_map renames the tools, so the
server answers to the same remote names a real one would.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteMockSources,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := serverConfig(args[0], server, completion.RegistryPath(cmd), callsPerMinute)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Registry entry whose capability_map names the tools")
	cmd.Flags().IntVar(&callsPerMinute, "rate", 600, "Maximum tool calls per minute")
	_ = cmd.RegisterFlagCompletionFunc("server", completion.CompleteServerNames)

	return cmd
}

// serverConfig builds the server configuration, reading tool names from
// the registry entry named by serverName when set.
func serverConfig(source, serverName, registryPath string, callsPerMinute int) (server.ServerConfig, error) {
	v, _, _ := shared.GetVersion()
	cfg := server.ServerConfig{
		Source:         source,
		Version:        v,
		CallsPerMinute: callsPerMinute,
	}
	if callsPerMinute <= 0 {
		return cfg, shared.NewInputError("--rate must be positive", nil)
	}
	if serverName == "" {
		return cfg, nil
	}
	reg, err := config.LoadRegistry(registryPath)
	if err != nil {
		return cfg, shared.NewConfigError("failed to load server registry", err)
	}
	desc, ok := reg.Get(serverName)
	if !ok {
		return cfg, shared.NewInputError(fmt.Sprintf("server %q is not in %s", serverName, registryPath), nil)
	}
	cfg.ToolNames = desc.CapabilityMap
	return cfg, nil
}

func run(ctx context.Context, cfg server.ServerConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// Stdout carries the protocol; logs go to stderr only.
	logCfg := log.FromEnv()
	logCfg.Format = log.FormatText
	logCfg.Output = os.Stderr
	cfg.Logger = log.New(logCfg)

	srv, err := server.NewServer(cfg)
	if err != nil {
		return shared.NewInputError("failed to create MCP server", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
