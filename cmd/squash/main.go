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

package main

import (
	"context"

	"github.com/tombee/squash/internal/cli"
	"github.com/tombee/squash/internal/commands/ask"
	"github.com/tombee/squash/internal/commands/completion"
	"github.com/tombee/squash/internal/commands/management"
	"github.com/tombee/squash/internal/commands/mockserver"
	"github.com/tombee/squash/internal/commands/secrets"
	"github.com/tombee/squash/internal/commands/serve"
	"github.com/tombee/squash/internal/commands/servers"
	"github.com/tombee/squash/internal/commands/upload"
	versioncmd "github.com/tombee/squash/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	// Pipeline commands
	rootCmd.AddCommand(ask.NewCommand())
	rootCmd.AddCommand(ask.NewAnalyzeCommand())

	// Data commands
	rootCmd.AddCommand(upload.NewCommand())
	rootCmd.AddCommand(servers.NewCommand())
	rootCmd.AddCommand(management.NewHistoryCommand())

	// Server commands
	rootCmd.AddCommand(serve.NewCommand())
	rootCmd.AddCommand(serve.NewTokenCommand())
	rootCmd.AddCommand(mockserver.NewCommand())

	// Configuration
	rootCmd.AddCommand(secrets.NewCommand())
	rootCmd.AddCommand(completion.NewCommand())
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		cli.HandleExitError(err)
	}
}
