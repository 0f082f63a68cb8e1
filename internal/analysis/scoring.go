package analysis

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/tombee/squash/pkg/errors"
)

// Scoring methods.
const (
	MethodRICE   = "rice"
	MethodICE    = "ice"
	MethodCustom = "custom"
)

// Scorer scores and orders opportunities.
type Scorer struct {
	method  string
	formula string

	mu      sync.Mutex
	program *vm.Program
}

// NewScorer returns a scorer for method. The custom method evaluates
// formula, an expr program over reach, impact, confidence, effort, ease,
// evidence_count and description_length that must yield a number.
func NewScorer(method, formula string) (*Scorer, error) {
	s := &Scorer{method: method, formula: formula}
	switch method {
	case MethodRICE, MethodICE:
	case MethodCustom:
		if _, err := s.compile(); err != nil {
			return nil, err
		}
	default:
		return nil, &errors.ValidationError{
			Field:      "method",
			Message:    fmt.Sprintf("unknown scoring method %q", method),
			Suggestion: "use rice, ice or custom",
		}
	}
	return s, nil
}

// Method returns the scoring method name.
func (s *Scorer) Method() string { return s.method }

// Score returns a scored copy of o.
func (s *Scorer) Score(o Opportunity) (Opportunity, error) {
	switch s.method {
	case MethodICE:
		return scoreICE(o), nil
	case MethodCustom:
		return s.scoreCustom(o)
	default:
		return scoreRICE(o), nil
	}
}

// ScoreAll scores every opportunity and sorts them by score, highest
// first. Equal scores keep their input order. An opportunity whose custom
// formula fails to evaluate scores 0 and the first such error is returned.
func (s *Scorer) ScoreAll(opps []Opportunity) ([]Opportunity, error) {
	var firstErr error
	scored := make([]Opportunity, 0, len(opps))
	for _, o := range opps {
		so, err := s.Score(o)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		scored = append(scored, so)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score() > scored[j].Score()
	})
	return scored, firstErr
}

// RICEScore is reach x impact x confidence / effort, or 0 without effort.
func RICEScore(reach int, impact, confidence, effort float64) float64 {
	if effort == 0 {
		return 0
	}
	return float64(reach) * impact * confidence / effort
}

// ICEScore is impact x confidence x ease.
func ICEScore(impact, confidence, ease float64) float64 {
	return impact * confidence * ease
}

func scoreRICE(o Opportunity) Opportunity {
	c := RICEComponents{
		Reach:      estimateReach(o),
		Impact:     estimateImpact(o),
		Confidence: parseConfidence(o),
		Effort:     estimateEffort(o),
	}
	score := round(RICEScore(c.Reach, c.Impact, c.Confidence, c.Effort), 2)
	o.RICEScore = &score
	o.RICEComponents = &c
	return o
}

func scoreICE(o Opportunity) Opportunity {
	impact := estimateImpact(o) * 3.33
	confidence := parseConfidence(o) * 10
	ease := 10 - math.Min(estimateEffort(o)*2, 10)

	score := round(ICEScore(impact, confidence, ease), 2)
	o.ICEScore = &score
	o.ICEComponents = &ICEComponents{
		Impact:     round(impact, 1),
		Confidence: round(confidence, 1),
		Ease:       round(ease, 1),
	}
	return o
}

func (s *Scorer) scoreCustom(o Opportunity) (Opportunity, error) {
	var zero float64
	o.CustomScore = &zero

	program, err := s.compile()
	if err != nil {
		return o, err
	}
	env := formulaEnv(o)
	out, err := expr.Run(program, env)
	if err != nil {
		return o, &errors.ValidationError{
			Field:      "formula",
			Message:    fmt.Sprintf("scoring formula failed for %q: %s", o.Name, err.Error()),
			Suggestion: "verify the formula only references the documented variables",
		}
	}
	score := round(toFloat(out), 2)
	o.CustomScore = &score
	return o, nil
}

func (s *Scorer) compile() (*vm.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.program != nil {
		return s.program, nil
	}
	program, err := expr.Compile(s.formula, expr.Env(formulaEnv(Opportunity{})), expr.AsFloat64())
	if err != nil {
		return nil, &errors.ValidationError{
			Field:      "formula",
			Message:    fmt.Sprintf("failed to compile scoring formula: %s", err.Error()),
			Suggestion: "use arithmetic over reach, impact, confidence, effort, ease, evidence_count and description_length",
		}
	}
	s.program = program
	return program, nil
}

func formulaEnv(o Opportunity) map[string]any {
	effort := estimateEffort(o)
	return map[string]any{
		"reach":              float64(estimateReach(o)),
		"impact":             estimateImpact(o),
		"confidence":         parseConfidence(o),
		"effort":             effort,
		"ease":               10 - math.Min(effort*2, 10),
		"evidence_count":     float64(len(o.Evidence)),
		"description_length": float64(utf8.RuneCountInString(o.Description)),
	}
}

// estimateReach uses the amount of evidence as a proxy for users affected.
func estimateReach(o Opportunity) int {
	return max(len(o.Evidence)*500, 100)
}

func estimateImpact(o Opportunity) float64 {
	switch o.Confidence {
	case ConfidenceHigh:
		return 2.0
	case ConfidenceLow:
		return 0.5
	default:
		return 1.0
	}
}

func parseConfidence(o Opportunity) float64 {
	switch o.Confidence {
	case ConfidenceHigh:
		return 0.9
	case ConfidenceLow:
		return 0.3
	default:
		return 0.6
	}
}

// estimateEffort uses description length as a proxy for person-months.
func estimateEffort(o Opportunity) float64 {
	switch n := utf8.RuneCountInString(o.Description); {
	case n > 200:
		return 3.0
	case n > 100:
		return 2.0
	default:
		return 1.0
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
