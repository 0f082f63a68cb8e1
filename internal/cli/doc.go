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

/*
Package cli provides the root command of the squash CLI.

Commands live in the internal/commands subpackages and are registered in
cmd/squash:

	squash
	├── ask           Ask a product question
	├── analyze       Find the next feature to build from every upload
	├── upload        Add a document to the upload directory
	├── servers       List, inspect and call data sources
	├── serve         Run the HTTP API
	├── mock-server   Serve one source's mock data over stdio MCP
	├── history       Browse past runs
	├── secrets       Manage credentials in the keychain
	├── token         Issue an API bearer token
	├── completion    Generate shell completion scripts
	└── version       Show version

# Global Flags

	--verbose, -v    Enable verbose output
	--quiet, -q      Suppress non-error output
	--json           Output in JSON format
	--servers        Path to the server registry

# Exit Codes

  - 0: success
  - 1: the run produced no result
  - 2: invalid input
  - 3: invalid configuration
  - 4: LLM provider error
  - 5: the run finished with stage errors
*/
package cli
