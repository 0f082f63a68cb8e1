package processing

import (
	"encoding/json"
	"fmt"
)

// Payloads arrive either as Go literals from the mock backend or as decoded
// JSON from subprocess and REST backends, so numbers may be int or float64
// and lists may be []any or []string.

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asList(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case []map[string]any:
		out := make([]any, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out
	}
	return nil
}

func asStrings(v any) []string {
	var out []string
	for _, item := range asList(v) {
		switch s := item.(type) {
		case string:
			out = append(out, s)
		case nil:
		default:
			out = append(out, fmt.Sprint(s))
		}
	}
	return out
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

func getString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// field returns m[key] when m is a map holding key.
func field(v any, key string) (any, bool) {
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	out, ok := m[key]
	return out, ok
}

// dedup appends values to seen-order output, skipping repeats and empties.
type dedup struct {
	seen  map[string]bool
	items []string
}

func (d *dedup) add(values ...string) {
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	for _, v := range values {
		if v == "" || d.seen[v] {
			continue
		}
		d.seen[v] = true
		d.items = append(d.items, v)
	}
}

func (d *dedup) first(n int) []string {
	if len(d.items) > n {
		return d.items[:n]
	}
	if d.items == nil {
		return []string{}
	}
	return d.items
}
