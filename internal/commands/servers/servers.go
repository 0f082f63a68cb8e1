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

// Package servers inspects and calls the configured data sources.
package servers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tombee/squash/internal/commands/completion"
	"github.com/tombee/squash/internal/commands/shared"
	"github.com/tombee/squash/internal/connector"
	"github.com/tombee/squash/internal/jq"
)

// newApp is replaced in tests.
var newApp = func(ctx context.Context) (*shared.App, error) {
	return shared.NewApp(ctx, shared.AppOptions{})
}

// NewCommand creates the servers command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Inspect configured data sources",
		Annotations: map[string]string{
			"group": "data",
		},
		Long: `Servers lists the data sources in the server registry (SERVERS_CONFIG)
and the backend each one resolved to: mock, an MCP subprocess or a direct
HTTP client.`,
	}
	cmd.AddCommand(newListCommand(), newInfoCommand(), newCallCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	var serverType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List data sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			return listServers(cmd.OutOrStdout(), app.Manager, serverType)
		},
	}
	cmd.Flags().StringVar(&serverType, "type", "", "Only list sources of this type (analytics, support, ...)")
	return cmd
}

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "info <name>",
		Short:             "Show one data source",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteServerNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			return serverInfo(cmd.OutOrStdout(), app.Manager, args[0])
		},
	}
}

func newCallCommand() *cobra.Command {
	var (
		params []string
		filter string
	)
	cmd := &cobra.Command{
		Use:   "call <server> <capability>",
		Short: "Call one capability and print the result",
		Long: `Call invokes a capability on a data source and prints the JSON result.

Parameter values are parsed as JSON when possible, so numbers and booleans
keep their type. Anything else is passed as a string. --jq filters the
result before it is printed.

Examples:
  squash servers call mixpanel get_user_metrics
  squash servers call zendesk get_tickets --param limit=5 --param status=open
  squash servers call mixpanel get_user_metrics --jq .total_users`,
		Args: cobra.ExactArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return completion.CompleteServerNames(cmd, args, toComplete)
			}
			return completion.CompleteServerCapabilities(cmd, args, toComplete)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ParseParams(params)
			if err != nil {
				return err
			}
			if err := jq.Validate(filter); err != nil {
				return shared.NewInputError("invalid --jq expression", err)
			}
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			return callServer(cmd.Context(), cmd.OutOrStdout(), app.Manager, args[0], args[1], p, filter)
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Capability parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&filter, "jq", "", "jq expression applied to the result")
	return cmd
}

type listResponse struct {
	shared.JSONResponse
	Servers []connector.ServerInfo `json:"servers"`
}

func listServers(out io.Writer, m *connector.Manager, serverType string) error {
	infos := m.GetAllServerInfo()
	if serverType != "" {
		filtered := infos[:0]
		for _, info := range infos {
			if info.Type == serverType {
				filtered = append(filtered, info)
			}
		}
		infos = filtered
	}

	if shared.GetJSON() {
		return shared.EmitJSONTo(out, listResponse{JSONResponse: shared.NewJSONResponse("servers list", true), Servers: infos})
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "No data sources configured.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tBACKEND\tSTATE\tCAPABILITIES")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			info.Name, info.Type, shared.RenderSourceKind(string(info.Kind), info.IsMock), info.State, len(info.Capabilities))
	}
	return tw.Flush()
}

type infoResponse struct {
	shared.JSONResponse
	connector.ServerInfo
	Command string `json:"command,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

func serverInfo(out io.Writer, m *connector.Manager, name string) error {
	c, ok := m.GetServer(name)
	if !ok {
		return shared.NewInputError(fmt.Sprintf("server %q not found", name), fmt.Errorf("run 'squash servers list' to see configured sources"))
	}
	info := c.Info()
	desc := c.Descriptor()
	resp := infoResponse{JSONResponse: shared.NewJSONResponse("servers info", true), ServerInfo: info}
	if desc.Command != "" {
		resp.Command = strings.TrimSpace(desc.Command + " " + strings.Join(desc.Args, " "))
	}
	if info.Kind != connector.KindMock {
		resp.Timeout = desc.CallTimeout().String()
	}

	if shared.GetJSON() {
		return shared.EmitJSONTo(out, resp)
	}
	fmt.Fprintf(out, "%s %s\n", shared.Header.Render(info.Name), shared.RenderLabel(info.Type))
	if info.Description != "" {
		fmt.Fprintf(out, "%s\n", info.Description)
	}
	fmt.Fprintf(out, "\n%s %s (%s)\n", shared.RenderLabel("Backend:"), shared.RenderSourceKind(string(info.Kind), info.IsMock), info.State)
	if resp.Command != "" {
		fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("Command:"), resp.Command)
	}
	if resp.Timeout != "" {
		fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("Timeout:"), resp.Timeout)
	}
	fmt.Fprintf(out, "%s\n", shared.RenderLabel("Capabilities:"))
	for _, capability := range info.Capabilities {
		fmt.Fprintf(out, "  - %s\n", capability)
	}
	return nil
}

func callServer(ctx context.Context, out io.Writer, m *connector.Manager, server, capability string, params map[string]any, filter string) error {
	if _, ok := m.GetServer(server); !ok {
		return shared.NewInputError(fmt.Sprintf("server %q not found", server), nil)
	}
	res := m.CallTool(ctx, server, capability, params)
	if msg, failed := connector.IsError(res); failed {
		if err := shared.EmitJSONTo(out, res); err != nil {
			return err
		}
		return shared.NewRunError(fmt.Sprintf("%s.%s failed", server, capability), fmt.Errorf("%s", msg))
	}

	var shown any = res
	if filter != "" {
		v, err := jq.Default.Execute(ctx, filter, map[string]any(res))
		if err != nil {
			return shared.NewRunError("jq filter failed", err)
		}
		shown = v
	}
	return shared.EmitJSONTo(out, shown)
}

// ParseParams turns key=value pairs into call parameters.
func ParseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, shared.NewInputError(fmt.Sprintf("invalid parameter %q", pair), fmt.Errorf("expected key=value"))
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			params[key] = decoded
		} else {
			params[key] = value
		}
	}
	return params, nil
}
