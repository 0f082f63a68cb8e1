// Package jq compiles and runs the jq programs that reshape source API
// responses into connector results.
package jq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

const (
	// DefaultTimeout bounds one program run.
	DefaultTimeout = 1 * time.Second

	// DefaultMaxInputSize is the largest JSON input accepted (10MB).
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// Program is a compiled jq expression with optional named variables.
// It is safe for concurrent use.
type Program struct {
	expr string
	vars []string
	code *gojq.Code
}

// Compile parses and compiles expr. Variables are given without the
// leading "$" and are bound positionally by Run.
func Compile(expr string, vars ...string) (*Program, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = "$" + v
	}
	code, err := gojq.Compile(query, gojq.WithVariables(names))
	if err != nil {
		return nil, fmt.Errorf("jq compilation failed: %w", err)
	}
	return &Program{expr: expr, vars: vars, code: code}, nil
}

// MustCompile is Compile for package-level programs.
func MustCompile(expr string, vars ...string) *Program {
	p, err := Compile(expr, vars...)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source expression.
func (p *Program) String() string { return p.expr }

// Executor runs programs under a time and input size limit.
type Executor struct {
	timeout      time.Duration
	maxInputSize int64
}

// NewExecutor returns an executor. Zero values select the defaults.
func NewExecutor(timeout time.Duration, maxInputSize int64) *Executor {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if maxInputSize == 0 {
		maxInputSize = DefaultMaxInputSize
	}
	return &Executor{timeout: timeout, maxInputSize: maxInputSize}
}

// Default is the executor used by the package-level helpers.
var Default = NewExecutor(0, 0)

// Run executes p against data. No output yields nil, one output is
// returned as-is and several are returned as a slice.
func (e *Executor) Run(ctx context.Context, p *Program, data any, values ...any) (any, error) {
	if len(values) != len(p.vars) {
		return nil, fmt.Errorf("jq program %q wants %d variables, got %d", p.expr, len(p.vars), len(values))
	}
	input, err := e.normalize(data)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var results []any
	iter := p.code.RunWithContext(runCtx, input, values...)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			if runCtx.Err() != nil && ctx.Err() == nil {
				return nil, fmt.Errorf("jq execution timeout after %v", e.timeout)
			}
			return nil, err
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// Execute compiles and runs a one-off expression. An empty expression
// returns data unchanged.
func (e *Executor) Execute(ctx context.Context, expr string, data any) (any, error) {
	if expr == "" {
		return data, nil
	}
	p, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, p, data)
}

// Validate reports whether expr compiles.
func Validate(expr string) error {
	if expr == "" {
		return nil
	}
	_, err := Compile(expr)
	return err
}

// Map runs p with the default executor and asserts an object result.
// A nil result becomes an empty map.
func Map(ctx context.Context, p *Program, data any, values ...any) (map[string]any, error) {
	out, err := Default.Run(ctx, p, data, values...)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return map[string]any{}, nil
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("jq program %q produced %T, want object", p.expr, out)
	}
	return m, nil
}

// normalize round-trips data through JSON so gojq only sees the types it
// understands, and enforces the input size limit on the way.
func (e *Executor) normalize(data any) (any, error) {
	raw, ok := data.(json.RawMessage)
	if !ok {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data: %w", err)
		}
	}
	if int64(len(raw)) > e.maxInputSize {
		return nil, fmt.Errorf("data size (%d bytes) exceeds maximum (%d bytes)", len(raw), e.maxInputSize)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	return out, nil
}
