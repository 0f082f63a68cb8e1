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
Package mcp runs MCP servers as subprocesses behind a blocking call API.

A Session owns one server process and a worker goroutine. Connect, Call and
Disconnect post work to the worker and wait on a bounded timeout (30s, 30s
and 10s by default), so callers stay sequential while calls are
multiplexed over the stdio connection.

	s := mcp.NewSession(mcp.SessionConfig{
	    Name:    "zendesk",
	    Command: "npx",
	    Args:    []string{"-y", "zendesk-mcp-server"},
	    Env:     map[string]string{"ZENDESK_API_TOKEN": "${ZENDESK_API_TOKEN}"},
	    CapabilityMap: map[string]string{"get_tickets": "list_tickets"},
	})
	if err := s.Connect(ctx); err != nil {
	    return err
	}
	defer s.Disconnect()

	res := s.Call(ctx, "get_tickets", nil)
	if msg, failed := res["error"]; failed {
	    ...
	}

Call never returns a Go error. Unknown tools, tool errors, timeouts and
closed sessions are reported as {"error": message} results.
*/
package mcp
