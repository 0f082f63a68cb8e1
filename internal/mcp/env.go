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
	"regexp"
	"sort"
)

var envRefRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Expand replaces every ${VAR} in s with the value of VAR, or the empty
// string when VAR is unset.
func Expand(s string, lookup LookupFunc) string {
	return envRefRegex.ReplaceAllStringFunc(s, func(ref string) string {
		name := envRefRegex.FindStringSubmatch(ref)[1]
		v, _ := lookup(name)
		return v
	})
}

// ResolveArgs expands ${VAR} references in launch arguments.
func ResolveArgs(args []string, lookup LookupFunc) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = Expand(a, lookup)
	}
	return out
}

// ResolveEnv expands ${VAR} references in an environment table and returns
// KEY=VALUE pairs sorted by key. The transport appends these to the
// inherited environment, so later entries override inherited ones.
func ResolveEnv(env map[string]string, lookup LookupFunc) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+Expand(env[k], lookup))
	}
	return out
}
