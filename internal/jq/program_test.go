package jq

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestExecutor_Execute(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		data       any
		want       any
		wantErr    bool
	}{
		{
			name:       "empty expression returns data as-is",
			expression: "",
			data:       map[string]any{"foo": "bar"},
			want:       map[string]any{"foo": "bar"},
		},
		{
			name:       "field extraction",
			expression: ".foo",
			data:       map[string]any{"foo": "bar"},
			want:       "bar",
		},
		{
			name:       "multiple outputs become a slice",
			expression: ".[] | .x",
			data:       []any{map[string]any{"x": 1}, map[string]any{"x": 2}},
			want:       []any{float64(1), float64(2)},
		},
		{
			name:       "no output is nil",
			expression: "empty",
			data:       map[string]any{},
			want:       nil,
		},
		{
			name:       "typed input is normalized",
			expression: ".Count",
			data:       struct{ Count int }{Count: 3},
			want:       float64(3),
		},
		{
			name:       "invalid expression",
			expression: ".[",
			data:       map[string]any{},
			wantErr:    true,
		},
		{
			name:       "runtime error",
			expression: ".foo + 1",
			data:       map[string]any{"foo": "bar"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Default.Execute(context.Background(), tt.expression, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Execute() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestProgram_Variables(t *testing.T) {
	p := MustCompile(`{range: $range, events: [.events | to_entries[] | {name: .key, count: .value.total}]}`, "range")

	raw := json.RawMessage(`{"events": {"signup": {"total": 12}}}`)
	got, err := Map(context.Background(), p, raw, "2024-01-01 to 2024-01-31")
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	want := map[string]any{
		"range":  "2024-01-01 to 2024-01-31",
		"events": []any{map[string]any{"name": "signup", "count": float64(12)}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Map() = %#v, want %#v", got, want)
	}

	if _, err := Default.Run(context.Background(), p, raw); err == nil {
		t.Error("expected error for missing variable")
	}
}

func TestMap_NonObject(t *testing.T) {
	_, err := Map(context.Background(), MustCompile(".[0]"), []any{1})
	if err == nil || !strings.Contains(err.Error(), "want object") {
		t.Fatalf("expected object error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(""); err != nil {
		t.Errorf("empty expression should be valid: %v", err)
	}
	if err := Validate(".foo | length"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Validate(".["); err == nil {
		t.Error("expected error for invalid expression")
	}
}

func TestExecutor_Limits(t *testing.T) {
	e := NewExecutor(50*time.Millisecond, DefaultMaxInputSize)
	_, err := e.Execute(context.Background(), "def f: f; f", 0)
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Errorf("expected timeout error, got %v", err)
	}

	small := NewExecutor(DefaultTimeout, 8)
	if _, err := small.Execute(context.Background(), ".", map[string]any{"long": "value"}); err == nil {
		t.Error("expected size limit error")
	}
}
