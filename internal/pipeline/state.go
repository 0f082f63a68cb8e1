package pipeline

import (
	"time"

	"github.com/tombee/squash/internal/analysis"
	"github.com/tombee/squash/internal/generation"
	"github.com/tombee/squash/internal/insights"
	"github.com/tombee/squash/internal/processing"
)

// Query types produced by the route stage.
const (
	QueryFeatureDiscovery = "feature_discovery"
	QueryAnalysis         = "analysis"
	QueryTaskBreakdown    = "task_breakdown"
)

// State accumulates the results of one run. Each stage writes only the
// fields it owns; nothing is cleared once set.
type State struct {
	RunID         string   `json:"run_id"`
	Query         string   `json:"query"`
	UploadedFiles []string `json:"uploaded_files"`
	QueryType     string   `json:"query_type,omitempty"`

	Interviews    []processing.Interview       `json:"interviews,omitempty"`
	InterviewData *processing.InterviewSummary `json:"interview_data,omitempty"`
	AnalyticsData []insights.Bundle            `json:"analytics_data,omitempty"`
	SupportData   []insights.Bundle            `json:"support_data,omitempty"`
	SalesData     insights.Bundle              `json:"sales_data,omitempty"`
	PMData        []insights.Bundle            `json:"pm_data,omitempty"`

	AggregatedData *processing.Aggregated `json:"aggregated_data,omitempty"`

	FeatureOpportunities []analysis.Opportunity `json:"feature_opportunities,omitempty"`
	ScoredFeatures       []analysis.Opportunity `json:"scored_features,omitempty"`
	TopFeature           *analysis.Opportunity  `json:"top_feature,omitempty"`

	ImpactAssessment *generation.ImpactAssessment `json:"impact_assessment,omitempty"`
	FeatureSpec      *generation.FeatureSpec      `json:"feature_spec,omitempty"`
	UIProposals      *generation.UIProposals      `json:"ui_proposals,omitempty"`
	TaskBreakdown    *generation.TaskBreakdown    `json:"task_breakdown,omitempty"`

	// Error is the most recent recorded error; Errors holds all of them in
	// the order they occurred.
	Error  string        `json:"error,omitempty"`
	Errors []ErrorRecord `json:"errors,omitempty"`

	Phase      Phase     `json:"phase"`
	Completed  bool      `json:"completed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// ErrorRecord is one error raised during a run.
type ErrorRecord struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// NewState creates the initial state of a run.
func NewState(runID, query string, files []string) *State {
	if files == nil {
		files = []string{}
	}
	return &State{
		RunID:         runID,
		Query:         query,
		UploadedFiles: files,
		Phase:         PhaseStart,
	}
}

// RecordError appends err under stage and makes it the current error.
func (s *State) RecordError(stage string, err error) {
	if err == nil {
		return
	}
	s.Errors = append(s.Errors, ErrorRecord{Stage: stage, Message: err.Error()})
	s.Error = err.Error()
}

// Report assembles the renderable view of the state.
func (s *State) Report() generation.Report {
	return generation.Report{
		Query:         s.Query,
		TopFeature:    s.TopFeature,
		Spec:          s.FeatureSpec,
		UIProposals:   s.UIProposals,
		Tasks:         s.TaskBreakdown,
		Opportunities: s.ScoredFeatures,
		Error:         s.Error,
	}
}
