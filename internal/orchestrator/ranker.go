package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"taskbot/internal/model"
)

// maxRanked caps the ranked output for downstream display.
const maxRanked = 3

// ScoreFunc is the injected scoring backend (e.g. an LLM matcher). It must
// return a score in [0,100]; anything else is a contract violation.
type ScoreFunc func(ctx context.Context, task *model.Task, candidate model.Candidate) (float64, error)

type RankedCandidate struct {
	CandidateID string  `json:"candidate_id"`
	Score       float64 `json:"score"` // 0-100
}

// Ranker orders a candidate pool for a task. It owns only the exclusion
// rules and the deterministic ordering policy; the actual scoring is the
// injected ScoreFunc's business.
type Ranker struct {
	Score ScoreFunc
}

func NewRanker(score ScoreFunc) *Ranker {
	return &Ranker{Score: score}
}

// Rank returns at most three candidates ordered best-first. Identical inputs
// always yield identical output: ties break by higher performance, then older
// last_done_at (longer-idle favored), then user_id ascending.
func (r *Ranker) Rank(ctx context.Context, task *model.Task, candidates []model.Candidate) ([]RankedCandidate, error) {
	if r.Score == nil {
		return nil, violationf("ranker has no scoring function")
	}
	taskTags := tagSet(task.TagList())

	type scored struct {
		c     model.Candidate
		score float64
	}
	pool := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if c.HoursAvailable <= 0 {
			continue
		}
		if !overlaps(taskTags, c.TagList()) {
			continue
		}
		s, err := r.Score(ctx, task, c)
		if err != nil {
			return nil, fmt.Errorf("score candidate %s: %w", c.UserID, err)
		}
		if s < 0 || s > 100 {
			return nil, violationf("match score %.2f for %s outside [0,100]", s, c.UserID)
		}
		pool = append(pool, scored{c: c, score: s})
	}

	sort.Slice(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.c.Performance != b.c.Performance {
			return a.c.Performance > b.c.Performance
		}
		if !equalDoneAt(a.c, b.c) {
			return olderDoneAt(a.c, b.c)
		}
		return a.c.UserID < b.c.UserID
	})

	n := len(pool)
	if n > maxRanked {
		n = maxRanked
	}
	out := make([]RankedCandidate, 0, n)
	for _, s := range pool[:n] {
		out = append(out, RankedCandidate{CandidateID: s.c.UserID, Score: s.score})
	}
	return out, nil
}

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

func overlaps(set map[string]struct{}, tags []string) bool {
	for _, t := range tags {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

func equalDoneAt(a, b model.Candidate) bool {
	if a.LastDoneAt == nil || b.LastDoneAt == nil {
		return a.LastDoneAt == nil && b.LastDoneAt == nil
	}
	return a.LastDoneAt.Equal(*b.LastDoneAt)
}

// olderDoneAt favors the candidate idle longest. A candidate who has never
// completed a task sorts before any who has.
func olderDoneAt(a, b model.Candidate) bool {
	if a.LastDoneAt == nil {
		return true
	}
	if b.LastDoneAt == nil {
		return false
	}
	return a.LastDoneAt.Before(*b.LastDoneAt)
}
