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

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tombee/squash/internal/log"
	"github.com/tombee/squash/internal/pipeline"
	"github.com/tombee/squash/pkg/errors"
)

// Recorder keeps run history in step with pipeline events and persists the
// final state of each run.
type Recorder struct {
	store  RunStore
	logger *slog.Logger
}

// NewRecorder creates a Recorder writing to s.
func NewRecorder(s RunStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, logger: log.WithComponent(logger, "store")}
}

// Attach registers the recorder on every engine event.
func (r *Recorder) Attach(events *pipeline.EventEmitter) {
	events.OnAll(r.Handle)
}

// Handle applies one pipeline event to the stored run.
func (r *Recorder) Handle(ctx context.Context, ev *pipeline.Event) error {
	switch ev.Type {
	case pipeline.EventStageStarted:
		if ev.Stage != pipeline.StageRoute {
			return nil
		}
		run := &Run{ID: ev.RunID, Status: StatusRunning, StartedAt: ev.Timestamp}
		if q, ok := ev.Data["query"].(string); ok {
			run.Query = q
		}
		if files, ok := ev.Data["files"].([]string); ok {
			run.Files = files
		}
		if started, ok := ev.Data["started_at"].(time.Time); ok && !started.IsZero() {
			run.StartedAt = started
		}
		return r.create(ctx, run)

	case pipeline.EventStageCompleted:
		return r.update(ctx, ev.RunID, func(run *Run) {
			run.Stage = ev.Stage
		})

	case pipeline.EventStageError:
		return r.update(ctx, ev.RunID, func(run *Run) {
			if msg, ok := ev.Data["error"].(string); ok {
				run.Error = msg
			}
		})

	case pipeline.EventRunCompleted:
		return r.update(ctx, ev.RunID, func(run *Run) {
			if status, ok := ev.Data["status"].(string); ok {
				run.Status = status
			}
			if qt, ok := ev.Data["query_type"].(string); ok {
				run.QueryType = qt
			}
		})
	}
	return nil
}

// Finish stores the complete state of a finished run, creating the record
// when no event reached the recorder first.
func (r *Recorder) Finish(ctx context.Context, s *pipeline.State) (*Run, error) {
	run, err := RunFromState(s)
	if err != nil {
		return nil, err
	}

	existing, err := r.store.GetRun(ctx, s.RunID)
	var notFound *errors.NotFoundError
	switch {
	case errors.As(err, &notFound):
		err = r.store.CreateRun(ctx, run)
	case err != nil:
		return nil, err
	default:
		run.CreatedAt = existing.CreatedAt
		err = r.store.UpdateRun(ctx, run)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save run %s: %w", s.RunID, err)
	}
	r.logger.Debug("run saved", log.RunIDKey, run.ID, "status", run.Status)
	return run, nil
}

// RunFromState builds the stored record for a finished run.
func RunFromState(s *pipeline.State) (*Run, error) {
	result, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run state: %w", err)
	}

	run := &Run{
		ID:        s.RunID,
		Query:     s.Query,
		QueryType: s.QueryType,
		Status:    StatusCompleted,
		Files:     s.UploadedFiles,
		Stage:     stageByPhase[s.Phase],
		Error:     s.Error,
		Result:    result,
		StartedAt: s.StartedAt,
	}
	if s.TopFeature != nil {
		run.TopFeature = s.TopFeature.Name
	}
	switch {
	case s.Phase == pipeline.PhaseStart:
		run.Status = StatusNotStarted
	case len(s.Errors) > 0:
		run.Status = StatusCompletedWithErrors
	}
	if !s.FinishedAt.IsZero() {
		finished := s.FinishedAt
		run.FinishedAt = &finished
	}
	return run, nil
}

// stageByPhase maps a phase to the stage that produced it.
var stageByPhase = map[pipeline.Phase]string{
	pipeline.PhaseRouted:     pipeline.StageRoute,
	pipeline.PhaseCollected:  pipeline.StageCollect,
	pipeline.PhaseAggregated: pipeline.StageAggregate,
	pipeline.PhaseAnalyzed:   pipeline.StageAnalyze,
	pipeline.PhaseGenerated:  pipeline.StageGenerate,
	pipeline.PhaseReviewed:   pipeline.StageReview,
}

func (r *Recorder) create(ctx context.Context, run *Run) error {
	if err := r.store.CreateRun(ctx, run); err != nil {
		r.logger.Warn("failed to record run", log.RunIDKey, run.ID, log.Error(err))
		return err
	}
	return nil
}

func (r *Recorder) update(ctx context.Context, id string, apply func(*Run)) error {
	run, err := r.store.GetRun(ctx, id)
	if err != nil {
		r.logger.Warn("failed to load run", log.RunIDKey, id, log.Error(err))
		return err
	}
	apply(run)
	if err := r.store.UpdateRun(ctx, run); err != nil {
		r.logger.Warn("failed to update run", log.RunIDKey, id, log.Error(err))
		return err
	}
	return nil
}
