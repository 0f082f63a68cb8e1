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

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/squash/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for Squash
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "squash",
		Short: "Squash - product decision support from your data sources",
		Long: `Squash answers product questions by collecting data from analytics,
support, sales and project tools, scoring feature opportunities and writing
specs, UI proposals and task breakdowns for the top one.

Run 'squash ask' to ask a question.
Run 'squash servers list' to see the configured data sources.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	verbose, quiet, json, servers := shared.RegisterFlagPointers()

	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(servers, "servers", "", "Path to the server registry (default: $SERVERS_CONFIG or config/servers.yaml)")

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return shared.NewInputError(err.Error(), fmt.Errorf("see '%s --help'", c.CommandPath()))
	})

	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
