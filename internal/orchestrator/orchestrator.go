package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskbot/internal/model"
)

// Outcome classifies how an event was absorbed.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate" // recovered locally, informational
	OutcomeRejected  Outcome = "rejected"  // illegal transition, state unchanged
)

// Result is what Handle hands back to the external collaborators: the mutated
// task snapshot, the ordered outbound actions to perform, and the minimal
// change-set the store needs to persist the transition.
type Result struct {
	Outcome Outcome          `json:"outcome"`
	Task    *model.Task      `json:"task,omitempty"`
	Actions []OutboundAction `json:"actions,omitempty"`
	Changes *ChangeSet       `json:"changes,omitempty"`
	Reason  string           `json:"reason,omitempty"` // rejection detail
}

// Snapshot is the durable state the caller fetched for this event. The
// orchestrator owns it exclusively for the duration of the call and never
// mutates it; the updated copy comes back in the Result.
type Snapshot struct {
	Task       *model.Task
	Candidates []model.Candidate // ranking pool, task_created only
}

// Config bounds the orchestrator's long-latency collaborators.
type Config struct {
	EvalTimeout time.Duration
	RankTimeout time.Duration
}

// Orchestrator composes the deduplicator, ranker, evaluator and state machine
// into a single event-ingestion entry point. It performs no I/O: it is a
// function from (snapshot, event, collaborator outputs) to (snapshot, actions).
type Orchestrator struct {
	dedup     *Deduplicator
	evaluator AcceptanceEvaluator
	ranker    *Ranker

	evalTimeout time.Duration
	rankTimeout time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now func() time.Time
}

func New(dedup *Deduplicator, evaluator AcceptanceEvaluator, ranker *Ranker, cfg Config) *Orchestrator {
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = 30 * time.Second
	}
	if cfg.RankTimeout <= 0 {
		cfg.RankTimeout = 30 * time.Second
	}
	return &Orchestrator{
		dedup:       dedup,
		evaluator:   evaluator,
		ranker:      ranker,
		evalTimeout: cfg.EvalTimeout,
		rankTimeout: cfg.RankTimeout,
		locks:       map[string]*sync.Mutex{},
		now:         time.Now,
	}
}

// taskLock serializes event handling per task ID. Events for distinct tasks
// proceed in parallel; no two events for the same task interleave mid-transition.
func (o *Orchestrator) taskLock(taskID string) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()
	mu, ok := o.locks[taskID]
	if !ok {
		mu = &sync.Mutex{}
		o.locks[taskID] = mu
	}
	return mu
}

// Handle ingests one inbound event. Duplicates and illegal transitions come
// back in the Result, not as errors; contract violations and collaborator
// timeouts are errors, and a timeout commits nothing so the same event can be
// replayed safely.
func (o *Orchestrator) Handle(ctx context.Context, ev Event, snap Snapshot) (Result, error) {
	if ev.ID == "" {
		return Result{}, violationf("event without id")
	}
	if !o.dedup.ShouldProcess(ev.ID) {
		return Result{Outcome: OutcomeDuplicate}, nil
	}

	mu := o.taskLock(ev.TaskID)
	mu.Lock()
	defer mu.Unlock()

	res, err := o.apply(ctx, ev, snap)
	if err != nil {
		// Nothing was committed, so release the event id for a safe replay.
		o.dedup.Forget(ev.ID)
	}
	return res, err
}

func (o *Orchestrator) apply(ctx context.Context, ev Event, snap Snapshot) (Result, error) {
	if snap.Task == nil {
		return Result{}, violationf("event %s references no task snapshot", ev.ID)
	}
	task := *snap.Task // private copy; the caller's snapshot stays untouched

	if err := guard(&task, ev.Type); err != nil {
		if errors.Is(err, ErrIllegalTransition) {
			return Result{Outcome: OutcomeRejected, Reason: err.Error()}, nil
		}
		return Result{}, err
	}

	cs := newChangeSet(task.ID.String())
	var actions []OutboundAction
	var err error

	switch ev.Type {
	case EventTaskCreated:
		actions, err = o.handleTaskCreated(ctx, &task, snap.Candidates, cs)
	case EventCandidateSelected:
		actions = o.handleCandidateSelected(&task, ev.Payload, cs)
	case EventSubmissionReceived:
		actions = o.handleSubmission(&task, ev.Payload, cs)
	case EventCIStatusChanged:
		actions, err = o.handleEvaluation(ctx, &task, CodeCheck{Status: ev.Payload.CIStatus}, cs)
	case EventReviewScored:
		actions, err = o.handleEvaluation(ctx, &task, ReviewCheck{Score: ev.Payload.Score, Reasons: ev.Payload.Reasons}, cs)
	case EventReminderTick:
		actions = o.handleReminder(&task)
	}
	if err != nil {
		return Result{}, err
	}

	task.LastEventID = ev.ID
	cs.set("last_event_id", ev.ID)
	actions = append(actions, OutboundAction{Kind: ActionPersistTask, Target: cs.TaskID})

	return Result{Outcome: OutcomeApplied, Task: &task, Actions: actions, Changes: cs}, nil
}

// handleTaskCreated ranks the candidate pool for a fresh Draft task and asks
// the coordinator to pick. The task stays in Draft until a candidate is
// selected.
func (o *Orchestrator) handleTaskCreated(ctx context.Context, task *model.Task, pool []model.Candidate, cs *ChangeSet) ([]OutboundAction, error) {
	rctx, cancel := context.WithTimeout(ctx, o.rankTimeout)
	defer cancel()

	ranked, err := o.ranker.Rank(rctx, task, pool)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", ErrRankingTimeout, err)
		}
		return nil, err
	}

	return []OutboundAction{{
		Kind:   ActionNotify,
		Target: "coordinator",
		Data: map[string]any{
			"task_id":    task.ID.String(),
			"title":      task.Title,
			"candidates": ranked,
		},
	}}, nil
}

func (o *Orchestrator) handleCandidateSelected(task *model.Task, p Payload, cs *ChangeSet) []OutboundAction {
	assign(task, cs, p.CandidateID, o.now())
	return []OutboundAction{
		{
			Kind:   ActionCreateSubchannel,
			Target: task.ID.String(),
			Data:   map[string]any{"name": task.Title, "description": task.Description},
		},
		{
			Kind:   ActionInvite,
			Target: p.CandidateID,
			Data:   map[string]any{"task_id": task.ID.String()},
		},
		{
			Kind:   ActionNotify,
			Target: p.CandidateID,
			Data: map[string]any{
				"task_id":  task.ID.String(),
				"title":    task.Title,
				"deadline": task.Deadline,
			},
		},
	}
}

func (o *Orchestrator) handleSubmission(task *model.Task, p Payload, cs *ChangeSet) []OutboundAction {
	submit(task, cs, p.SubmissionURL, p.CommitSHA)
	return []OutboundAction{{
		Kind:   ActionNotify,
		Target: "coordinator",
		Data: map[string]any{
			"task_id":        task.ID.String(),
			"submission_url": task.SubmissionURL,
			"revision":       task.RevisionCount,
		},
	}}
}

// handleEvaluation reduces a submission signal to a verdict and commits the
// matching transition. The evaluator call is bounded: expiry surfaces as a
// retryable timeout with the task still in its pre-evaluation state.
func (o *Orchestrator) handleEvaluation(ctx context.Context, task *model.Task, sub Submission, cs *ChangeSet) ([]OutboundAction, error) {
	ectx, cancel := context.WithTimeout(ctx, o.evalTimeout)
	defer cancel()

	verdict, err := o.evaluator.Evaluate(ectx, task, sub)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", ErrEvaluationTimeout, err)
		}
		return nil, err
	}

	if verdict.Passed {
		complete(task, cs, o.now())
		return []OutboundAction{{
			Kind:   ActionNotify,
			Target: task.ChatID,
			Data: map[string]any{
				"task_id": task.ID.String(),
				"passed":  true,
				"score":   verdict.Score,
			},
		}}, nil
	}

	escalate := returnForRevision(task, cs, verdict.FailedReasons)
	actions := []OutboundAction{{
		Kind:   ActionNotify,
		Target: task.ChatID,
		Data: map[string]any{
			"task_id":        task.ID.String(),
			"passed":         false,
			"failed_reasons": verdict.FailedReasons,
			"revision":       task.RevisionCount,
		},
	}}
	if escalate {
		actions = append(actions, OutboundAction{
			Kind:   ActionEscalate,
			Target: "coordinator",
			Data: map[string]any{
				"task_id":        task.ID.String(),
				"failed_reasons": verdict.FailedReasons,
				"revisions":      task.RevisionCount,
			},
		})
	}
	return actions, nil
}

// handleReminder nudges the assignee of a stalled task. No state changes.
func (o *Orchestrator) handleReminder(task *model.Task) []OutboundAction {
	if task.AssigneeID == "" {
		return nil
	}
	return []OutboundAction{{
		Kind:   ActionNotify,
		Target: task.AssigneeID,
		Data: map[string]any{
			"task_id":  task.ID.String(),
			"title":    task.Title,
			"status":   task.Status,
			"reminder": true,
		},
	}}
}
