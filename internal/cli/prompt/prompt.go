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

// Package prompt collects a query interactively when none is given on the
// command line.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxQueryLength bounds the query text in characters.
const MaxQueryLength = 2000

// ErrAborted is returned when the user cancels the prompt.
var ErrAborted = errors.New("prompt aborted")

// Query is the answer of a query prompt.
type Query struct {
	Text string
	// Files are upload paths chosen to accompany the query.
	Files []string
}

// Choice is a selectable upload.
type Choice struct {
	Label string
	Path  string
}

// Prompter asks for a query. HuhPrompter is used on terminals and
// MockPrompter in tests.
type Prompter interface {
	PromptQuery(ctx context.Context, uploads []Choice) (Query, error)
	IsInteractive() bool
}

// ValidateQuery rejects blank and oversized queries.
func ValidateQuery(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if n := utf8.RuneCountInString(s); n > MaxQueryLength {
		return fmt.Errorf("query is %d characters, maximum is %d", n, MaxQueryLength)
	}
	return nil
}

// Examples are offered as the prompt placeholder.
var Examples = []string{
	"What should we build next based on all available data?",
	"Why are enterprise customers churning?",
	"Write a spec for bulk data export",
	"Break down the SSO integration into tasks",
}
