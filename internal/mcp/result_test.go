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
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
)

func TestParseToolResult(t *testing.T) {
	tests := []struct {
		name string
		res  *mcp.CallToolResult
		want Result
	}{
		{
			name: "json object",
			res:  mcp.NewToolResultText(`{"open_tickets": 123}`),
			want: Result{"open_tickets": float64(123)},
		},
		{
			name: "multi part text joined by newline",
			res: &mcp.CallToolResult{Content: []mcp.Content{
				mcp.NewTextContent("line one"),
				mcp.NewTextContent("line two"),
			}},
			want: Result{"result": "line one\nline two"},
		},
		{
			name: "error parts joined by space",
			res: &mcp.CallToolResult{IsError: true, Content: []mcp.Content{
				mcp.NewTextContent("rate"),
				mcp.NewTextContent("limited"),
			}},
			want: Result{"error": "rate limited"},
		},
		{
			name: "error without text",
			res:  &mcp.CallToolResult{IsError: true},
			want: Result{"error": "Unknown MCP tool error"},
		},
		{
			name: "structured content",
			res:  &mcp.CallToolResult{StructuredContent: map[string]any{"velocity": 42}},
			want: Result{"velocity": 42},
		},
		{
			name: "nil",
			res:  nil,
			want: Result{"result": ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseToolResult(tt.res))
		})
	}
}
