package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/tombee/squash/pkg/errors"
)

// Phase is the position of a run in the pipeline.
type Phase string

const (
	PhaseStart      Phase = "start"
	PhaseRouted     Phase = "routed"
	PhaseCollected  Phase = "collected"
	PhaseAggregated Phase = "aggregated"
	PhaseAnalyzed   Phase = "analyzed"
	PhaseGenerated  Phase = "generated"
	PhaseReviewed   Phase = "reviewed"
)

// IsTerminal reports whether no further stage can run.
func (p Phase) IsTerminal() bool { return p == PhaseReviewed }

// Stage names, which are also the events that advance the machine.
const (
	StageRoute     = "route"
	StageCollect   = "collect"
	StageAggregate = "aggregate"
	StageAnalyze   = "analyze"
	StageGenerate  = "generate"
	StageReview    = "review"
)

// Stages lists every stage in execution order.
var Stages = []string{StageRoute, StageCollect, StageAggregate, StageAnalyze, StageGenerate, StageReview}

// StageFunc does the work of one stage. A returned error is recorded on
// the state; it does not stop the run.
type StageFunc func(ctx context.Context, s *State) error

// Transition advances a run from one phase to the next on Event.
type Transition struct {
	From   Phase
	To     Phase
	Event  string
	Action StageFunc
}

// Hooks observe stage execution.
type Hooks struct {
	BeforeStage func(ctx context.Context, s *State, stage string) context.Context
	AfterStage  func(ctx context.Context, s *State, stage string, err error)
}

// Machine runs stage transitions in a fixed order.
type Machine struct {
	transitions map[string]*Transition
	hooks       Hooks
}

// NewMachine creates a machine from transitions, keyed by event.
func NewMachine(transitions []*Transition, hooks Hooks) *Machine {
	m := &Machine{transitions: make(map[string]*Transition), hooks: hooks}
	for _, t := range transitions {
		m.transitions[t.Event] = t
	}
	return m
}

// Trigger runs the stage for event. Unknown events and events that do not
// match the current phase are validation errors and leave the state
// untouched. A stage failure, including a panic, is recorded on the state
// as a StageError and the phase still advances.
func (m *Machine) Trigger(ctx context.Context, s *State, event string) error {
	t, ok := m.transitions[event]
	if !ok {
		return &errors.ValidationError{
			Field:      "event",
			Message:    fmt.Sprintf("unknown event: %s", event),
			Suggestion: "use one of the pipeline stages",
		}
	}
	if s.Phase != t.From {
		return &errors.ValidationError{
			Field:      "phase",
			Message:    fmt.Sprintf("transition not allowed: from %s on event %s", s.Phase, event),
			Suggestion: fmt.Sprintf("run must be in phase %s to trigger %s", t.From, event),
		}
	}

	if m.hooks.BeforeStage != nil {
		ctx = m.hooks.BeforeStage(ctx, s, event)
	}
	err := runStage(ctx, s, event, t.Action)
	if err != nil {
		s.RecordError(event, err)
	}
	s.Phase = t.To
	if m.hooks.AfterStage != nil {
		m.hooks.AfterStage(ctx, s, event, err)
	}
	return nil
}

func runStage(ctx context.Context, s *State, stage string, fn StageFunc) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &errors.StageError{
				Stage: stage,
				Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
			}
		}
	}()
	if err := fn(ctx, s); err != nil {
		return &errors.StageError{Stage: stage, Cause: err}
	}
	return nil
}
