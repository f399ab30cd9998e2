package orchestrator

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"testing"
	"time"

	"taskbot/internal/model"
)

func fixedScore(scores map[string]float64) ScoreFunc {
	return func(_ context.Context, _ *model.Task, c model.Candidate) (float64, error) {
		return scores[c.UserID], nil
	}
}

func rankerTask() *model.Task {
	t := newTask(model.StatusDraft)
	t.SkillTags = "go,backend"
	return t
}

func candidate(id, tags string, hours, perf float64, doneAt *time.Time) model.Candidate {
	return model.Candidate{UserID: id, SkillTags: tags, HoursAvailable: hours, Performance: perf, LastDoneAt: doneAt}
}

func TestRankExcludesBeforeScoring(t *testing.T) {
	pool := []model.Candidate{
		candidate("u_go", "go", 10, 3, nil),
		candidate("u_no_overlap", "design,figma", 10, 5, nil),
		candidate("u_no_hours", "go,backend", 0, 5, nil),
	}
	ranked, err := NewRanker(fixedScore(map[string]float64{"u_go": 70})).
		Rank(context.Background(), rankerTask(), pool)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 1 || ranked[0].CandidateID != "u_go" {
		t.Fatalf("ranked = %+v, want only u_go", ranked)
	}
}

func TestRankDeterministicTieBreaks(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	pool := []model.Candidate{
		// All score 80: order falls to performance, then idleness, then id.
		candidate("u_c", "go", 10, 4, &older),
		candidate("u_b", "go", 10, 4, &newer),
		candidate("u_a", "go", 10, 5, &newer),
		candidate("u_d", "go", 10, 4, &older),
	}
	scores := map[string]float64{"u_a": 80, "u_b": 80, "u_c": 80, "u_d": 80}
	r := NewRanker(fixedScore(scores))

	first, err := r.Rank(context.Background(), rankerTask(), pool)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"u_a", "u_c", "u_d"} // perf 5 first; then older done_at; u_b falls off the top-3
	got := make([]string, len(first))
	for i, rc := range first {
		got[i] = rc.CandidateID
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}

	// Identical input must reproduce identical output.
	second, err := r.Rank(context.Background(), rankerTask(), pool)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("ranking not deterministic: %+v vs %+v", first, second)
	}
}

func TestRankNeverDoneSortsBeforeDone(t *testing.T) {
	done := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pool := []model.Candidate{
		candidate("u_busy", "go", 10, 4, &done),
		candidate("u_fresh", "go", 10, 4, nil),
	}
	ranked, err := NewRanker(fixedScore(map[string]float64{"u_busy": 50, "u_fresh": 50})).
		Rank(context.Background(), rankerTask(), pool)
	if err != nil {
		t.Fatal(err)
	}
	if ranked[0].CandidateID != "u_fresh" {
		t.Fatalf("ranked = %+v, want u_fresh first", ranked)
	}
}

func TestRankCapsAtThree(t *testing.T) {
	var pool []model.Candidate
	scores := map[string]float64{}
	for i := 0; i < 8; i++ {
		id := "u_" + strconv.Itoa(i)
		pool = append(pool, candidate(id, "go", 10, 3, nil))
		scores[id] = float64(10 * i)
	}
	ranked, err := NewRanker(fixedScore(scores)).Rank(context.Background(), rankerTask(), pool)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 3 {
		t.Fatalf("len = %d, want 3", len(ranked))
	}
	if ranked[0].Score < ranked[1].Score || ranked[1].Score < ranked[2].Score {
		t.Fatalf("not ordered best-first: %+v", ranked)
	}
}

func TestRankScoreOutOfRangeIsContractViolation(t *testing.T) {
	pool := []model.Candidate{candidate("u_x", "go", 10, 3, nil)}
	_, err := NewRanker(fixedScore(map[string]float64{"u_x": 101})).
		Rank(context.Background(), rankerTask(), pool)
	if !errors.Is(err, ErrContractViolation) {
		t.Fatalf("err = %v, want contract violation", err)
	}
}

func TestRankPropagatesScorerError(t *testing.T) {
	boom := errors.New("scorer down")
	r := NewRanker(func(context.Context, *model.Task, model.Candidate) (float64, error) {
		return 0, boom
	})
	_, err := r.Rank(context.Background(), rankerTask(), []model.Candidate{candidate("u_x", "go", 10, 3, nil)})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped scorer error", err)
	}
}
