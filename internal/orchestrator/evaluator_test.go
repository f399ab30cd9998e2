package orchestrator

import (
	"context"
	"errors"
	"testing"

	"taskbot/internal/model"
)

func TestEvaluateCodeCheck(t *testing.T) {
	cases := []struct {
		status CIStatus
		passed bool
	}{
		{CISuccess, true},
		{CIFailure, false},
		{CIPending, false}, // ambiguous signals never default to pass
		{CIError, false},
	}
	e := NewEvaluator(0)
	for _, tc := range cases {
		v, err := e.Evaluate(context.Background(), &model.Task{}, CodeCheck{Status: tc.status})
		if err != nil {
			t.Fatalf("Evaluate(%s): %v", tc.status, err)
		}
		if v.Passed != tc.passed {
			t.Errorf("Evaluate(%s): passed = %v, want %v", tc.status, v.Passed, tc.passed)
		}
		if (len(v.FailedReasons) == 0) != v.Passed {
			t.Errorf("Evaluate(%s): failed_reasons empty iff passed violated: %+v", tc.status, v)
		}
	}
}

func TestEvaluateUnknownCIStatusIsContractViolation(t *testing.T) {
	e := NewEvaluator(0)
	_, err := e.Evaluate(context.Background(), &model.Task{}, CodeCheck{Status: "neutral"})
	if !errors.Is(err, ErrContractViolation) {
		t.Fatalf("err = %v, want contract violation", err)
	}
}

func TestEvaluateReviewCheck(t *testing.T) {
	cases := []struct {
		name      string
		threshold float64
		score     float64
		reasons   []string
		passed    bool
	}{
		{"above default threshold", 0, 92, nil, true},
		{"at default threshold", 0, 80, nil, true},
		{"below default threshold", 0, 60, []string{"missing tests"}, false},
		{"custom threshold passes lower", 50, 60, nil, true},
		{"custom threshold still fails", 95, 92, nil, false},
		{"zero score", 0, 0, []string{"empty submission"}, false},
		{"full score", 0, 100, nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEvaluator(tc.threshold)
			v, err := e.Evaluate(context.Background(), &model.Task{}, ReviewCheck{Score: tc.score, Reasons: tc.reasons})
			if err != nil {
				t.Fatal(err)
			}
			if v.Passed != tc.passed {
				t.Fatalf("passed = %v, want %v", v.Passed, tc.passed)
			}
			if v.Passed && len(v.FailedReasons) != 0 {
				t.Errorf("passing verdict carries reasons: %v", v.FailedReasons)
			}
			if !v.Passed && len(v.FailedReasons) == 0 {
				t.Error("failing verdict carries no reasons")
			}
			if v.Score != tc.score {
				t.Errorf("score = %v, want %v", v.Score, tc.score)
			}
		})
	}
}

func TestEvaluateReviewScoreOutOfRangeFailsFast(t *testing.T) {
	e := NewEvaluator(0)
	for _, score := range []float64{-1, 100.5, 1000} {
		_, err := e.Evaluate(context.Background(), &model.Task{}, ReviewCheck{Score: score})
		if !errors.Is(err, ErrContractViolation) {
			t.Errorf("score %v: err = %v, want contract violation", score, err)
		}
	}
}

func TestEvaluateHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEvaluator(0).Evaluate(ctx, &model.Task{}, CodeCheck{Status: CISuccess})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
