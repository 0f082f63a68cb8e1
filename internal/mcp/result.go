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
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// errorResult wraps err in the uniform error shape.
func errorResult(err error) Result {
	return Result{"error": err.Error()}
}

// ParseToolResult converts a tool result to the uniform shape. A tool error
// becomes {"error": text}. Text content is parsed as a JSON object when
// possible and wrapped as {"result": text} otherwise.
func ParseToolResult(res *mcp.CallToolResult) Result {
	if res == nil {
		return Result{"result": ""}
	}

	var texts []string
	for _, content := range res.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			texts = append(texts, tc.Text)
		}
	}

	if res.IsError {
		return errorResult(ErrToolFailed(strings.Join(texts, " ")))
	}

	if len(texts) == 0 {
		if structured, ok := res.StructuredContent.(map[string]any); ok {
			return structured
		}
	}

	text := strings.Join(texts, "\n")
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj != nil {
		return obj
	}
	return Result{"result": text}
}
