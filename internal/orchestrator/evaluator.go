package orchestrator

import (
	"context"
	"fmt"

	"taskbot/internal/model"
)

// CIStatus is the raw signal reported by the CI collaborator.
type CIStatus string

const (
	CISuccess CIStatus = "success"
	CIFailure CIStatus = "failure"
	CIPending CIStatus = "pending"
	CIError   CIStatus = "error"
)

// DefaultPassThreshold is the review score required to pass when no
// deployment-specific threshold is configured.
const DefaultPassThreshold = 80.0

// Submission is the closed set of acceptance inputs. Adding a new acceptance
// mode means adding a variant here and a reducer branch in Evaluate.
type Submission interface {
	submission()
}

// CodeCheck carries an already-fetched CI status signal.
type CodeCheck struct {
	Status CIStatus
}

// ReviewCheck carries a numeric score in [0,100] plus reasons supplied by an
// external scorer.
type ReviewCheck struct {
	Score   float64
	Reasons []string
}

func (CodeCheck) submission()   {}
func (ReviewCheck) submission() {}

// Verdict is the pass/fail outcome of evaluating a submission.
// FailedReasons is empty iff Passed is true.
type Verdict struct {
	Passed        bool     `json:"passed"`
	Score         float64  `json:"score,omitempty"` // review path only
	FailedReasons []string `json:"failed_reasons,omitempty"`
}

// AcceptanceEvaluator turns a submission into a verdict. Implementations may
// block on external signals, so they take a context; the orchestrator bounds
// the call and surfaces expiry as a retryable timeout.
type AcceptanceEvaluator interface {
	Evaluate(ctx context.Context, task *model.Task, sub Submission) (Verdict, error)
}

// Evaluator is the default AcceptanceEvaluator: a pure reducer over
// already-fetched signals. It performs no network or LLM calls, which keeps
// the CI-polling and scoring collaborators external and swappable.
type Evaluator struct {
	PassThreshold float64
}

func NewEvaluator(passThreshold float64) *Evaluator {
	if passThreshold <= 0 {
		passThreshold = DefaultPassThreshold
	}
	return &Evaluator{PassThreshold: passThreshold}
}

func (e *Evaluator) Evaluate(ctx context.Context, task *model.Task, sub Submission) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}
	switch s := sub.(type) {
	case CodeCheck:
		return e.evaluateCode(s)
	case ReviewCheck:
		return e.evaluateReview(s)
	default:
		return Verdict{}, violationf("unknown submission kind %T", sub)
	}
}

// evaluateCode is binary: only an unambiguous success passes. Pending and
// error signals fail with a reason naming the raw status rather than
// defaulting to pass.
func (e *Evaluator) evaluateCode(s CodeCheck) (Verdict, error) {
	switch s.Status {
	case CISuccess:
		return Verdict{Passed: true}, nil
	case CIFailure, CIPending, CIError:
		reason := fmt.Sprintf("ci status %q is not a pass", s.Status)
		return Verdict{FailedReasons: []string{reason}}, nil
	default:
		return Verdict{}, violationf("unknown ci status %q", s.Status)
	}
}

func (e *Evaluator) evaluateReview(s ReviewCheck) (Verdict, error) {
	if s.Score < 0 || s.Score > 100 {
		return Verdict{}, violationf("review score %.2f outside [0,100]", s.Score)
	}
	if s.Score >= e.PassThreshold {
		return Verdict{Passed: true, Score: s.Score}, nil
	}
	reasons := s.Reasons
	if len(reasons) == 0 {
		reasons = []string{fmt.Sprintf("review score %.2f below threshold %.2f", s.Score, e.PassThreshold)}
	}
	return Verdict{Score: s.Score, FailedReasons: reasons}, nil
}
