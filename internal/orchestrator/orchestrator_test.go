package orchestrator

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"taskbot/internal/model"
)

func newTestOrchestrator(eval AcceptanceEvaluator) *Orchestrator {
	if eval == nil {
		eval = NewEvaluator(0)
	}
	score := func(_ context.Context, _ *model.Task, c model.Candidate) (float64, error) {
		return c.Performance * 10, nil
	}
	o := New(NewDeduplicator(time.Hour, 1000), eval, NewRanker(score), Config{
		EvalTimeout: time.Second,
		RankTimeout: time.Second,
	})
	o.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return o
}

func findAction(actions []OutboundAction, kind ActionKind) (OutboundAction, bool) {
	for _, a := range actions {
		if a.Kind == kind {
			return a, true
		}
	}
	return OutboundAction{}, false
}

func TestHandleTaskCreatedRanksTopThree(t *testing.T) {
	o := newTestOrchestrator(nil)
	task := newTask(model.StatusDraft)
	pool := []model.Candidate{
		candidate("u_1", "go", 10, 9, nil),
		candidate("u_2", "go", 10, 7, nil),
		candidate("u_3", "go", 10, 8, nil),
		candidate("u_4", "go", 10, 5, nil),
	}

	res, err := o.Handle(context.Background(), Event{ID: "ev_1", Type: EventTaskCreated, TaskID: task.ID.String()}, Snapshot{Task: task, Candidates: pool})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeApplied {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	notify, ok := findAction(res.Actions, ActionNotify)
	if !ok {
		t.Fatal("no notify action for the coordinator")
	}
	ranked := notify.Data["candidates"].([]RankedCandidate)
	if len(ranked) != 3 || ranked[0].CandidateID != "u_1" {
		t.Fatalf("ranked = %+v", ranked)
	}
	if res.Task.Status != model.StatusDraft {
		t.Errorf("task left Draft prematurely: %s", res.Task.Status)
	}
}

func TestHandleCandidateSelected(t *testing.T) {
	o := newTestOrchestrator(nil)
	task := newTask(model.StatusDraft)

	res, err := o.Handle(context.Background(), Event{
		ID: "ev_2", Type: EventCandidateSelected, TaskID: task.ID.String(),
		Payload: Payload{CandidateID: "u_7"},
	}, Snapshot{Task: task})
	if err != nil {
		t.Fatal(err)
	}
	if res.Task.Status != model.StatusAssigned || res.Task.AssigneeID != "u_7" {
		t.Fatalf("task = %+v", res.Task)
	}
	if res.Task.AssignedAt == nil {
		t.Fatal("assigned_at not set")
	}
	for _, kind := range []ActionKind{ActionCreateSubchannel, ActionInvite, ActionNotify, ActionPersistTask} {
		if _, ok := findAction(res.Actions, kind); !ok {
			t.Errorf("missing %s action", kind)
		}
	}
	// The snapshot passed in stays untouched; only the returned copy mutates.
	if task.Status != model.StatusDraft {
		t.Error("caller snapshot mutated")
	}
}

func TestHappyPathCIPass(t *testing.T) {
	o := newTestOrchestrator(nil)
	task := newTask(model.StatusAssigned)

	res, err := o.Handle(context.Background(), Event{
		ID: "ev_sub", Type: EventSubmissionReceived, TaskID: task.ID.String(),
		Payload: Payload{SubmissionURL: "https://git.example.com/pr/1", CommitSHA: "deadbeef"},
	}, Snapshot{Task: task})
	if err != nil {
		t.Fatal(err)
	}
	if res.Task.Status != model.StatusSubmitted {
		t.Fatalf("status = %s, want Submitted", res.Task.Status)
	}

	res, err = o.Handle(context.Background(), Event{
		ID: "ev_ci", Type: EventCIStatusChanged, TaskID: task.ID.String(),
		Payload: Payload{CIStatus: CISuccess},
	}, Snapshot{Task: res.Task})
	if err != nil {
		t.Fatal(err)
	}
	if res.Task.Status != model.StatusDone {
		t.Fatalf("status = %s, want Done", res.Task.Status)
	}
	if res.Task.DoneAt == nil {
		t.Fatal("done_at not set")
	}
	notify, ok := findAction(res.Actions, ActionNotify)
	if !ok || notify.Data["passed"] != true {
		t.Fatalf("expected a pass notification, got %+v", res.Actions)
	}
	if _, ok := res.Changes.Fields["done_at"]; !ok {
		t.Error("change-set missing done_at")
	}
}

func TestBoundedRetryIncrementsRevision(t *testing.T) {
	o := newTestOrchestrator(nil)
	task := newTask(model.StatusSubmitted)
	task.RevisionCount = 1

	res, err := o.Handle(context.Background(), Event{
		ID: "ev_rev", Type: EventReviewScored, TaskID: task.ID.String(),
		Payload: Payload{Score: 60, Reasons: []string{"missing tests"}},
	}, Snapshot{Task: task})
	if err != nil {
		t.Fatal(err)
	}
	if res.Task.Status != model.StatusReturned {
		t.Fatalf("status = %s, want Returned", res.Task.Status)
	}
	if res.Task.RevisionCount != 2 {
		t.Fatalf("revision_count = %d, want 2", res.Task.RevisionCount)
	}
	if res.Task.NeedsCoordinator {
		t.Error("escalated inside the revision budget")
	}
	if !reflect.DeepEqual(res.Task.FailedReasons, []string{"missing tests"}) {
		t.Errorf("failed_reasons = %v", res.Task.FailedReasons)
	}
}

func TestEscalationPastRevisionBudget(t *testing.T) {
	o := newTestOrchestrator(nil)
	task := newTask(model.StatusSubmitted)
	task.RevisionCount = MaxRevisions

	res, err := o.Handle(context.Background(), Event{
		ID: "ev_esc", Type: EventReviewScored, TaskID: task.ID.String(),
		Payload: Payload{Score: 40, Reasons: []string{"still failing"}},
	}, Snapshot{Task: task})
	if err != nil {
		t.Fatal(err)
	}
	if res.Task.Status != model.StatusReturned || !res.Task.NeedsCoordinator {
		t.Fatalf("task = status %s needs_coordinator %v", res.Task.Status, res.Task.NeedsCoordinator)
	}
	if res.Task.RevisionCount != MaxRevisions {
		t.Fatalf("revision_count = %d, budget is %d", res.Task.RevisionCount, MaxRevisions)
	}
	if _, ok := findAction(res.Actions, ActionEscalate); !ok {
		t.Fatal("no escalate action")
	}
}

func TestDuplicateEventIsInformationalNoOp(t *testing.T) {
	o := newTestOrchestrator(nil)
	task := newTask(model.StatusDraft)
	ev := Event{ID: "ev_dup", Type: EventCandidateSelected, TaskID: task.ID.String(), Payload: Payload{CandidateID: "u_1"}}

	first, err := o.Handle(context.Background(), ev, Snapshot{Task: task})
	if err != nil || first.Outcome != OutcomeApplied {
		t.Fatalf("first delivery: %v %v", first.Outcome, err)
	}
	second, err := o.Handle(context.Background(), ev, Snapshot{Task: first.Task})
	if err != nil {
		t.Fatal(err)
	}
	if second.Outcome != OutcomeDuplicate || second.Task != nil || len(second.Actions) != 0 {
		t.Fatalf("duplicate produced effects: %+v", second)
	}
}

func TestIllegalTransitionReportedNotFatal(t *testing.T) {
	o := newTestOrchestrator(nil)
	task := newTask(model.StatusDraft)

	res, err := o.Handle(context.Background(), Event{
		ID: "ev_bad", Type: EventCIStatusChanged, TaskID: task.ID.String(),
		Payload: Payload{CIStatus: CISuccess},
	}, Snapshot{Task: task})
	if err != nil {
		t.Fatalf("illegal transition surfaced as error: %v", err)
	}
	if res.Outcome != OutcomeRejected || res.Reason == "" {
		t.Fatalf("res = %+v", res)
	}
	if task.Status != model.StatusDraft {
		t.Error("rejected event mutated the task")
	}
}

type flakyEvaluator struct {
	hang bool
}

func (f *flakyEvaluator) Evaluate(ctx context.Context, task *model.Task, sub Submission) (Verdict, error) {
	if f.hang {
		<-ctx.Done()
		return Verdict{}, ctx.Err()
	}
	return NewEvaluator(0).Evaluate(ctx, task, sub)
}

func TestEvaluationTimeoutThenIdempotentRetry(t *testing.T) {
	eval := &flakyEvaluator{hang: true}
	o := newTestOrchestrator(eval)
	o.evalTimeout = 5 * time.Millisecond

	task := newTask(model.StatusSubmitted)
	ev := Event{ID: "ev_slow", Type: EventCIStatusChanged, TaskID: task.ID.String(), Payload: Payload{CIStatus: CISuccess}}

	_, err := o.Handle(context.Background(), ev, Snapshot{Task: task})
	if !errors.Is(err, ErrEvaluationTimeout) {
		t.Fatalf("err = %v, want evaluation timeout", err)
	}
	if !IsRetryable(err) {
		t.Fatal("timeout not marked retryable")
	}
	if task.Status != model.StatusSubmitted {
		t.Fatal("timeout committed a partial transition")
	}

	// Replaying the same event after the collaborator recovers lands the
	// same end state as a single successful application.
	eval.hang = false
	res, err := o.Handle(context.Background(), ev, Snapshot{Task: task})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeApplied || res.Task.Status != model.StatusDone {
		t.Fatalf("retry result = %+v", res)
	}
}

func TestReminderTickNotifiesAssignee(t *testing.T) {
	o := newTestOrchestrator(nil)
	task := newTask(model.StatusAssigned)
	task.AssigneeID = "u_9"

	res, err := o.Handle(context.Background(), Event{ID: "ev_tick", Type: EventReminderTick, TaskID: task.ID.String()}, Snapshot{Task: task})
	if err != nil {
		t.Fatal(err)
	}
	notify, ok := findAction(res.Actions, ActionNotify)
	if !ok || notify.Target != "u_9" {
		t.Fatalf("actions = %+v", res.Actions)
	}
	if res.Task.Status != model.StatusAssigned {
		t.Error("reminder changed task state")
	}
}

func TestContractViolationReleasesEventForRetry(t *testing.T) {
	o := newTestOrchestrator(nil)
	task := newTask(model.StatusSubmitted)
	ev := Event{ID: "ev_viol", Type: EventReviewScored, TaskID: task.ID.String(), Payload: Payload{Score: 400}}

	_, err := o.Handle(context.Background(), ev, Snapshot{Task: task})
	if !errors.Is(err, ErrContractViolation) {
		t.Fatalf("err = %v", err)
	}
	// A corrected redelivery under the same event id is not a duplicate.
	ev.Payload.Score = 90
	res, err := o.Handle(context.Background(), ev, Snapshot{Task: task})
	if err != nil || res.Outcome != OutcomeApplied {
		t.Fatalf("redelivery: %+v %v", res, err)
	}
}
