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

package shared

import (
	"os"

	"golang.org/x/term"
)

// ciVars are set by common CI systems. JENKINS_HOME holds a path, the rest
// hold true or 1.
var ciVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "CIRCLECI", "JENKINS_HOME"}

// IsNonInteractive reports whether prompts must be skipped. In priority
// order: SQUASH_NON_INTERACTIVE=true, a CI environment, or stdin that is
// not a terminal.
func IsNonInteractive() bool {
	if os.Getenv("SQUASH_NON_INTERACTIVE") == "true" {
		return true
	}
	if isCIEnvironment() {
		return true
	}
	return !term.IsTerminal(int(os.Stdin.Fd()))
}

func isCIEnvironment() bool {
	for _, name := range ciVars {
		value := os.Getenv(name)
		if value == "true" || value == "1" {
			return true
		}
		if name == "JENKINS_HOME" && value != "" {
			return true
		}
	}
	return false
}
