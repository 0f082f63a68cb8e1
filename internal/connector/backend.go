package connector

import (
	"context"
	"fmt"

	"github.com/tombee/squash/internal/mcp"
)

// Kind is the resolved backend variant of a connector.
type Kind string

const (
	KindMock       Kind = "mock"
	KindSubprocess Kind = "subprocess"
	KindLegacy     Kind = "legacy"
)

// State mirrors the subprocess session states. Mock and legacy backends
// are always ready.
type State = mcp.State

// Result is a call outcome. Failures carry an "error" key.
type Result = map[string]any

// Backend is the transport behind a Connector. Call may return an error;
// the Connector turns it into an error result.
type Backend interface {
	Kind() Kind
	State() State
	Capabilities() []string
	Call(ctx context.Context, capability string, params map[string]any) (Result, error)
	Close() error
}

// UnsupportedError is returned when a capability is not declared by the
// server.
type UnsupportedError struct {
	Server     string
	Capability string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("Capability %s not supported by %s", e.Capability, e.Server)
}

// errorResult builds the result shape used for every failure.
func errorResult(msg string) Result {
	return Result{"error": msg}
}

// IsError reports whether a result carries an error, and returns it.
func IsError(r Result) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r["error"]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	return s, s != ""
}
