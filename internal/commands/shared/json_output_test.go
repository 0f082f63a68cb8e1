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
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitJSONTo_Envelope(t *testing.T) {
	resp := struct {
		JSONResponse
		Servers []string `json:"servers"`
	}{
		JSONResponse: NewJSONResponse("servers list", true),
		Servers:      []string{"mixpanel", "zendesk"},
	}

	var buf bytes.Buffer
	require.NoError(t, EmitJSONTo(&buf, resp))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "1.0", raw["@version"])
	assert.Equal(t, "servers list", raw["command"])
	assert.Equal(t, true, raw["success"])
	assert.Len(t, raw["servers"], 2)
	assert.True(t, strings.HasPrefix(buf.String(), "{\n  \""), "output is indented")
}

func TestEmitJSONError(t *testing.T) {
	var buf bytes.Buffer
	err := EmitJSONError(&buf, "ask", []JSONError{
		{Code: "STAGE_FAILED", Message: "model unavailable", Stage: "analyze"},
		{Code: "NO_QUERY", Message: "query is required", Suggestion: "pass a query argument"},
	})
	require.NoError(t, err)

	var decoded struct {
		JSONResponse
		Errors []JSONError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.False(t, decoded.Success)
	assert.Equal(t, "ask", decoded.Command)
	require.Len(t, decoded.Errors, 2)
	assert.Equal(t, "analyze", decoded.Errors[0].Stage)
	assert.Empty(t, decoded.Errors[0].Suggestion)
	assert.Equal(t, "pass a query argument", decoded.Errors[1].Suggestion)
	assert.NotContains(t, buf.String(), `"stage": ""`)
}
