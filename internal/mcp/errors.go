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
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// MCPErrorCode represents a category of MCP error.
type MCPErrorCode string

const (
	// ErrorCodeNotConnected indicates a call on a session that is not ready.
	ErrorCodeNotConnected MCPErrorCode = "NOT_CONNECTED"
	// ErrorCodeUnknownTool indicates the tool was not discovered on the server.
	ErrorCodeUnknownTool MCPErrorCode = "UNKNOWN_TOOL"
	// ErrorCodeCommandNotFound indicates a command was not found.
	ErrorCodeCommandNotFound MCPErrorCode = "COMMAND_NOT_FOUND"
	// ErrorCodeStartFailed indicates the process or the handshake failed.
	ErrorCodeStartFailed MCPErrorCode = "START_FAILED"
	// ErrorCodeToolFailed indicates the server reported a tool error.
	ErrorCodeToolFailed MCPErrorCode = "TOOL_FAILED"
	// ErrorCodeConnectionClosed indicates the session was closed mid-operation.
	ErrorCodeConnectionClosed MCPErrorCode = "CONNECTION_CLOSED"
	// ErrorCodeTimeout indicates a timeout occurred.
	ErrorCodeTimeout MCPErrorCode = "TIMEOUT"
)

// MCPError is an error type that includes suggestions for resolution.
type MCPError struct {
	// Code is the error category.
	Code MCPErrorCode
	// Message is the primary error message.
	Message string
	// Detail provides additional context.
	Detail string
	// Suggestions are actionable steps to resolve the error.
	Suggestions []string
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns the primary message. Call results carry this text verbatim
// in their error field, so it stays on one line.
func (e *MCPError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *MCPError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements pkg/errors.UserVisibleError.
func (e *MCPError) IsUserVisible() bool {
	return true
}

// UserMessage implements pkg/errors.UserVisibleError.
func (e *MCPError) UserMessage() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

// Suggestion implements pkg/errors.UserVisibleError.
func (e *MCPError) Suggestion() string {
	if len(e.Suggestions) == 0 {
		return ""
	}
	return e.Suggestions[0]
}

// NewMCPError creates a new MCPError.
func NewMCPError(code MCPErrorCode, message string) *MCPError {
	return &MCPError{
		Code:    code,
		Message: message,
	}
}

// WithDetail adds detail to the error.
func (e *MCPError) WithDetail(detail string) *MCPError {
	e.Detail = detail
	return e
}

// WithSuggestions adds suggestions to the error.
func (e *MCPError) WithSuggestions(suggestions ...string) *MCPError {
	e.Suggestions = suggestions
	return e
}

// WithCause adds an underlying cause to the error.
func (e *MCPError) WithCause(cause error) *MCPError {
	e.Cause = cause
	return e
}

// IsCode reports whether err is an MCPError with the given code.
func IsCode(err error, code MCPErrorCode) bool {
	var mcpErr *MCPError
	return errors.As(err, &mcpErr) && mcpErr.Code == code
}

// ErrNotConnected creates an error for calls on a session that is not ready.
func ErrNotConnected(name string) *MCPError {
	return NewMCPError(ErrorCodeNotConnected, fmt.Sprintf("MCP server '%s' is not connected", name)).
		WithSuggestions(fmt.Sprintf("Check the server with: squash servers info %s", name))
}

// ErrUnknownTool creates an error for a tool missing from the discovered set.
func ErrUnknownTool(name, tool string) *MCPError {
	return NewMCPError(ErrorCodeUnknownTool, fmt.Sprintf("Tool '%s' not available on MCP server '%s'", tool, name)).
		WithSuggestions(
			"Add a capability_map entry translating the capability to the server's tool name",
			fmt.Sprintf("List the server's tools: squash servers info %s", name),
		)
}

// ErrToolFailed creates an error carrying the text of a tool error result.
func ErrToolFailed(message string) *MCPError {
	if message == "" {
		message = "Unknown MCP tool error"
	}
	return NewMCPError(ErrorCodeToolFailed, message)
}

// ErrCommandNotFound creates an error for when a command is not found.
func ErrCommandNotFound(command string) *MCPError {
	suggestions := []string{
		"Verify the command is installed and in your PATH",
		fmt.Sprintf("Use an absolute path in the server configuration: command: /path/to/%s", command),
	}

	switch command {
	case "npx", "node":
		suggestions = append(suggestions, "Install Node.js: https://nodejs.org/")
	case "python", "python3", "uvx":
		suggestions = append(suggestions, "Install Python: https://python.org/")
	}

	return NewMCPError(ErrorCodeCommandNotFound, fmt.Sprintf("Command '%s' not found", command)).
		WithDetail(fmt.Sprintf("Command '%s' not found in PATH", command)).
		WithSuggestions(suggestions...)
}

// ErrStartFailed creates an error for a failed launch or handshake.
func ErrStartFailed(name, command string, cause error) *MCPError {
	if errors.Is(cause, exec.ErrNotFound) {
		return ErrCommandNotFound(command).WithCause(cause)
	}
	return NewMCPError(ErrorCodeStartFailed, fmt.Sprintf("Failed to start MCP server '%s'", name)).
		WithDetail(cause.Error()).
		WithCause(cause).
		WithSuggestions(
			"Verify the command and arguments are correct",
			"Ensure required environment variables are set",
			"Run the command by hand and check it speaks MCP over stdio",
		)
}

// ErrConnectTimeout creates an error for a handshake that did not finish in time.
func ErrConnectTimeout(name string, d time.Duration) *MCPError {
	return NewMCPError(ErrorCodeTimeout, fmt.Sprintf("Timeout connecting to MCP server '%s' after %s", name, d)).
		WithSuggestions(
			"Check if the server is responding",
			"Package managers like npx may download on first start; try again",
		)
}

// ErrCallTimeout creates an error for a tool call that did not finish in time.
func ErrCallTimeout(name, tool string, d time.Duration) *MCPError {
	return NewMCPError(ErrorCodeTimeout, fmt.Sprintf("Timeout calling '%s' on MCP server '%s' after %s", tool, name, d)).
		WithSuggestions("Raise the server's timeout in the server configuration")
}

// ErrConnectionClosed creates an error for work cut off by a disconnect.
func ErrConnectionClosed(name string) *MCPError {
	return NewMCPError(ErrorCodeConnectionClosed, fmt.Sprintf("Connection to MCP server '%s' closed", name))
}
