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

// Package store defines run history storage.
//
// The package uses interface segregation so callers depend on the smallest
// surface they need:
//   - RunStore: create, get and update a run
//   - RunLister: list and delete runs
//
// Store composes both. The sqlite and memory subpackages implement it.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// Run statuses.
const (
	StatusRunning             = "running"
	StatusCompleted           = "completed"
	StatusCompletedWithErrors = "completed_with_errors"
	StatusNotStarted          = "not_started"
)

// Run is the stored record of one pipeline run.
type Run struct {
	ID        string   `json:"id"`
	Query     string   `json:"query"`
	QueryType string   `json:"query_type,omitempty"`
	Status    string   `json:"status"`
	Files     []string `json:"files,omitempty"`

	// Stage is the last stage that completed.
	Stage      string `json:"stage,omitempty"`
	TopFeature string `json:"top_feature,omitempty"`
	Error      string `json:"error,omitempty"`

	// Result is the final pipeline state as JSON. It is empty until the
	// run finishes.
	Result json.RawMessage `json:"result,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	Status string
	Limit  int
	Offset int
}

// RunStore is the core run storage interface.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	UpdateRun(ctx context.Context, run *Run) error
}

// RunLister lists and deletes runs. Lists are newest first.
type RunLister interface {
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error
}

// Store is the full storage interface.
type Store interface {
	RunStore
	RunLister
	Close() error
}
