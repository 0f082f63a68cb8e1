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
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/tombee/squash/pkg/errors"
)

// Exit codes for squash commands
const (
	ExitSuccess = 0
	// ExitRunFailed means the pipeline could not produce a result.
	ExitRunFailed = 1
	// ExitInvalidInput covers bad arguments, unknown servers and unreadable
	// documents.
	ExitInvalidInput = 2
	// ExitConfigError means settings or the server registry are invalid.
	ExitConfigError = 3
	// ExitProviderError means the LLM provider could not be built.
	ExitProviderError = 4
	// ExitPartialResult means the run finished but recorded stage errors.
	ExitPartialResult = 5
	// ExitInterrupted follows the shell convention for SIGINT.
	ExitInterrupted = 130
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewRunError creates an error for runs that produced no result.
func NewRunError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitRunFailed, Message: msg, Cause: cause}
}

// NewInputError creates an error for invalid command input.
func NewInputError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidInput, Message: msg, Cause: cause}
}

// NewConfigError creates an error for invalid settings or registries.
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfigError, Message: msg, Cause: cause}
}

// NewProviderError creates an error for provider-related failures
func NewProviderError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitProviderError, Message: msg, Cause: cause}
}

// NewPartialResultError reports a run that completed with stage errors.
func NewPartialResultError(stageErrors int) *ExitError {
	return &ExitError{
		Code:    ExitPartialResult,
		Message: fmt.Sprintf("run completed with %d stage error(s)", stageErrors),
	}
}

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var cfgErr *pkgerrors.ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	var valErr *pkgerrors.ValidationError
	if errors.As(err, &valErr) {
		return ExitInvalidInput
	}
	return ExitRunFailed
}

// WriteError prints err and, when the chain carries one, its suggestion.
func WriteError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(w, "Error:", err.Error())
	if s := userVisibleSuggestion(err); s != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", s)
	}
}

// HandleExitError prints err to stderr and exits with its code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	WriteError(os.Stderr, err)
	os.Exit(ExitCode(err))
}

// userVisibleSuggestion walks the error chain to the first
// UserVisibleError and returns its suggestion.
func userVisibleSuggestion(err error) string {
	var userErr pkgerrors.UserVisibleError
	if !errors.As(err, &userErr) || !userErr.IsUserVisible() {
		return ""
	}
	return userErr.Suggestion()
}
