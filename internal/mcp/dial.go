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

package mcp

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/mark3labs/mcp-go/client"
)

// ClientVersion is reported to servers during the handshake.
var ClientVersion = "dev"

// DialStdio launches cfg.Command as a subprocess speaking MCP over stdio.
// The child inherits the process environment overlaid with cfg.Env.
func DialStdio(ctx context.Context, cfg SessionConfig) (Client, error) {
	if _, err := exec.LookPath(cfg.Command); err != nil {
		return nil, ErrCommandNotFound(cfg.Command).WithCause(err)
	}

	env := ResolveEnv(cfg.Env, os.LookupEnv)
	args := ResolveArgs(cfg.Args, os.LookupEnv)

	c, err := client.NewStdioMCPClient(cfg.Command, env, args...)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	if stderr, ok := client.GetStderr(c); ok {
		logger := cfg.Logger
		if logger == nil {
			logger = slog.Default()
		}
		go drainStderr(stderr, logger.With("server", cfg.Name))
	}
	return c, nil
}

// drainStderr forwards server stderr to the debug log so the pipe never fills.
func drainStderr(r io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		logger.Debug("mcp server stderr", "line", scanner.Text())
	}
}
