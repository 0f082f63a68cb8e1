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

package errors_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	squasherrors "github.com/tombee/squash/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *squasherrors.ValidationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &squasherrors.ValidationError{
				Field:      "servers.jira.command",
				Message:    "command contains shell metacharacters",
				Suggestion: "Use args for arguments",
			},
			wantMsg: "validation failed on servers.jira.command: command contains shell metacharacters",
		},
		{
			name:    "without field",
			err:     &squasherrors.ValidationError{Message: "query is empty"},
			wantMsg: "validation failed: query is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestNotFoundError_Error(t *testing.T) {
	err := &squasherrors.NotFoundError{Resource: "server", ID: "zendesk"}
	if got := err.Error(); got != "server not found: zendesk" {
		t.Errorf("NotFoundError.Error() = %q", got)
	}
}

func TestProviderError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *squasherrors.ProviderError
		want    []string
		notWant []string
	}{
		{
			name: "full error",
			err: &squasherrors.ProviderError{
				Provider:   "anthropic",
				Code:       429,
				StatusCode: 429,
				Message:    "rate limit exceeded",
				RequestID:  "req_123",
			},
			want: []string{"anthropic", "429", "HTTP 429", "rate limit exceeded", "req_123"},
		},
		{
			name:    "minimal error",
			err:     &squasherrors.ProviderError{Provider: "gemini", Message: "connection failed"},
			want:    []string{"gemini", "connection failed"},
			notWant: []string{"HTTP", "request-id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("ProviderError.Error() = %q, want to contain %q", got, want)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(got, notWant) {
					t.Errorf("ProviderError.Error() = %q, should not contain %q", got, notWant)
				}
			}
		})
	}
}

func TestProviderError_IsRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := &squasherrors.ProviderError{Provider: "anthropic", StatusCode: tt.status}
			if got := err.IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigError_Unwrap(t *testing.T) {
	cause := errors.New("permission denied")
	err := &squasherrors.ConfigError{Key: "SERVERS_CONFIG", Reason: "cannot read file", Cause: cause}

	if got := err.Error(); got != "config error at SERVERS_CONFIG: cannot read file" {
		t.Errorf("ConfigError.Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("ConfigError should unwrap to its cause")
	}
}

func TestTimeoutError_Error(t *testing.T) {
	err := &squasherrors.TimeoutError{Operation: "connect", Duration: 30 * time.Second}
	if got := err.Error(); got != "connect operation timed out after 30s" {
		t.Errorf("TimeoutError.Error() = %q", got)
	}
}

func TestSourceError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *squasherrors.SourceError
		want string
	}{
		{
			name: "with capability",
			err:  &squasherrors.SourceError{Source: "jira", Capability: "get_backlog", Message: "HTTP 401"},
			want: "source jira failed on get_backlog: HTTP 401",
		},
		{
			name: "without capability",
			err:  &squasherrors.SourceError{Source: "jira", Message: "missing token"},
			want: "source jira failed: missing token",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("SourceError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStageError_Unwrap(t *testing.T) {
	cause := errors.New("llm unavailable")
	err := &squasherrors.StageError{Stage: "analyze", Cause: cause}

	if got := err.Error(); got != "stage analyze failed: llm unavailable" {
		t.Errorf("StageError.Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("StageError should unwrap to its cause")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", &squasherrors.ValidationError{Message: "x"}, "validation"},
		{"wrapped timeout", fmt.Errorf("call: %w", &squasherrors.TimeoutError{Operation: "call"}), "timeout"},
		{"source", &squasherrors.SourceError{Source: "posthog"}, "source"},
		{"plain", errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := squasherrors.Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !squasherrors.IsRetryable(squasherrors.Wrap(&squasherrors.TimeoutError{Operation: "call"}, "ctx")) {
		t.Error("wrapped timeout should be retryable")
	}
	if squasherrors.IsRetryable(errors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
}
