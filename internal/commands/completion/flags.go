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

package completion

import (
	"github.com/spf13/cobra"

	"github.com/tombee/squash/internal/config"
)

func static(values ...string) cobra.CompletionFunc {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
			return values, cobra.ShellCompDirectiveNoFileComp
		})
	}
}

// CompleteScoringMethods completes --method.
var CompleteScoringMethods = static(
	"rice\tReach x Impact x Confidence / Effort",
	"ice\tImpact x Confidence x Ease",
	"custom\tSCORING_FORMULA expression",
)

// CompleteOutputFormats completes --output.
var CompleteOutputFormats = static(
	"md\tMarkdown report",
	"json\tFull run state",
)

// CompleteRunStatus completes --status of history list.
var CompleteRunStatus = static(
	"running\tRun is in progress",
	"completed\tRun finished without errors",
	"completed_with_errors\tRun finished with stage errors",
	"not_started\tRun could not acquire the servers",
)

// CompleteSecretKeys completes the key argument of secrets commands.
var CompleteSecretKeys = static(config.SecretKeys...)
