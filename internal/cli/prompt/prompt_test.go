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

package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr string
	}{
		{"valid", "What should we build next?", ""},
		{"blank", "   \n", "cannot be empty"},
		{"at limit", strings.Repeat("é", MaxQueryLength), ""},
		{"too long", strings.Repeat("a", MaxQueryLength+1), "maximum is 2000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestHuhPrompter_NonInteractive(t *testing.T) {
	p := NewHuhPrompter(false)
	assert.False(t, p.IsInteractive())

	_, err := p.PromptQuery(context.Background(), nil)
	assert.ErrorContains(t, err, "non-interactive")
}

func TestMockPrompter(t *testing.T) {
	m := &MockPrompter{Answer: Query{Text: "Why do users churn?", Files: []string{"a.md"}}, Interactive: true}
	uploads := []Choice{{Label: "a.md", Path: "a.md"}}

	q, err := m.PromptQuery(context.Background(), uploads)
	require.NoError(t, err)
	assert.Equal(t, "Why do users churn?", q.Text)
	assert.Equal(t, [][]Choice{uploads}, m.Offered)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.PromptQuery(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
