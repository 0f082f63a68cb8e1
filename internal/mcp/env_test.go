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

	"github.com/stretchr/testify/assert"
)

func fakeEnv(vars map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestExpand(t *testing.T) {
	lookup := fakeEnv(map[string]string{"TOKEN": "abc", "HOST": "example.com"})

	tests := []struct {
		in   string
		want string
	}{
		{"${TOKEN}", "abc"},
		{"Bearer ${TOKEN}", "Bearer abc"},
		{"https://${HOST}/api?t=${TOKEN}", "https://example.com/api?t=abc"},
		{"${MISSING}", ""},
		{"$TOKEN", "$TOKEN"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Expand(tt.in, lookup), tt.in)
	}
}

func TestResolveArgs(t *testing.T) {
	args := ResolveArgs([]string{"--token", "${TOKEN}"}, fakeEnv(map[string]string{"TOKEN": "t"}))
	assert.Equal(t, []string{"--token", "t"}, args)
}

func TestResolveEnv(t *testing.T) {
	env := ResolveEnv(map[string]string{
		"ZENDESK_TOKEN": "${TOKEN}",
		"A_FLAG":        "1",
	}, fakeEnv(map[string]string{"TOKEN": "secret"}))

	assert.Equal(t, []string{"A_FLAG=1", "ZENDESK_TOKEN=secret"}, env)
}
