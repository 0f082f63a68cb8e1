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
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearInteractiveEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SQUASH_NON_INTERACTIVE", "")
	for _, name := range ciVars {
		t.Setenv(name, "")
	}
}

func TestIsNonInteractive(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"explicit opt out", map[string]string{"SQUASH_NON_INTERACTIVE": "true"}},
		{"CI=true", map[string]string{"CI": "true"}},
		{"GITHUB_ACTIONS=true", map[string]string{"GITHUB_ACTIONS": "true"}},
		{"JENKINS_HOME path", map[string]string{"JENKINS_HOME": "/var/jenkins"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearInteractiveEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.True(t, IsNonInteractive())
		})
	}
}

func TestIsCIEnvironment(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"none", nil, false},
		{"CI=1", map[string]string{"CI": "1"}, true},
		{"CI=false", map[string]string{"CI": "false"}, false},
		{"GITLAB_CI=true", map[string]string{"GITLAB_CI": "true"}, true},
		{"CIRCLECI=true", map[string]string{"CIRCLECI": "true"}, true},
		{"JENKINS_HOME empty", map[string]string{"JENKINS_HOME": ""}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearInteractiveEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, isCIEnvironment())
		})
	}
}
