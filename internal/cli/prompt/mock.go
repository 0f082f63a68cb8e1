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
	"sync"
)

// MockPrompter returns canned answers.
type MockPrompter struct {
	mu          sync.Mutex
	Answer      Query
	Err         error
	Interactive bool
	// Offered records the uploads of each call.
	Offered [][]Choice
}

// PromptQuery records the offered uploads and returns the canned answer.
func (m *MockPrompter) PromptQuery(ctx context.Context, uploads []Choice) (Query, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Offered = append(m.Offered, uploads)
	if err := ctx.Err(); err != nil {
		return Query{}, err
	}
	if m.Err != nil {
		return Query{}, m.Err
	}
	return m.Answer, nil
}

// IsInteractive reports the configured interactivity.
func (m *MockPrompter) IsInteractive() bool { return m.Interactive }
