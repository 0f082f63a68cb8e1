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

// Package memory provides an in-memory run store.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tombee/squash/internal/store"
	"github.com/tombee/squash/pkg/errors"
)

var _ store.Store = (*Store)(nil)

// Store keeps runs in a map. Runs are copied in and out so callers never
// share memory with the store.
type Store struct {
	mu    sync.RWMutex
	runs  map[string]*store.Run
	order []string
}

// New creates an empty store.
func New() *Store {
	return &Store{runs: make(map[string]*store.Run)}
}

// CreateRun stores a copy of run.
func (s *Store) CreateRun(_ context.Context, run *store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run already exists: %s", run.ID)
	}
	run.CreatedAt = time.Now().UTC()
	run.UpdatedAt = run.CreatedAt
	s.runs[run.ID] = clone(run)
	s.order = append(s.order, run.ID)
	return nil
}

// GetRun returns a copy of the run with id.
func (s *Store) GetRun(_ context.Context, id string) (*store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "run", ID: id}
	}
	return clone(run), nil
}

// UpdateRun replaces the stored run, keeping its creation time.
func (s *Store) UpdateRun(_ context.Context, run *store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.runs[run.ID]
	if !ok {
		return &errors.NotFoundError{Resource: "run", ID: run.ID}
	}
	run.CreatedAt = old.CreatedAt
	run.UpdatedAt = time.Now().UTC()
	s.runs[run.ID] = clone(run)
	return nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(_ context.Context, filter store.RunFilter) ([]*store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*store.Run{}
	skipped := 0
	for i := len(s.order) - 1; i >= 0; i-- {
		run := s.runs[s.order[i]]
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, clone(run))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// DeleteRun removes the run with id.
func (s *Store) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return &errors.NotFoundError{Resource: "run", ID: id}
	}
	delete(s.runs, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func clone(r *store.Run) *store.Run {
	c := *r
	c.Files = slices.Clone(r.Files)
	c.Result = slices.Clone(r.Result)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
