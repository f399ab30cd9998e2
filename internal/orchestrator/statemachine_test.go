package orchestrator

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"taskbot/internal/model"
)

func newTask(status model.TaskStatus) *model.Task {
	return &model.Task{
		ID:        uuid.New(),
		Title:     "wire the webhook relay",
		SkillTags: "go,backend",
		Status:    status,
	}
}

func TestGuardLegalAndIllegalStates(t *testing.T) {
	cases := []struct {
		typ     EventType
		status  model.TaskStatus
		allowed bool
	}{
		{EventTaskCreated, model.StatusDraft, true},
		{EventTaskCreated, model.StatusAssigned, false},
		{EventCandidateSelected, model.StatusDraft, true},
		{EventCandidateSelected, model.StatusSubmitted, false},
		{EventCandidateSelected, model.StatusDone, false},
		{EventSubmissionReceived, model.StatusAssigned, true},
		{EventSubmissionReceived, model.StatusReturned, true},
		{EventSubmissionReceived, model.StatusDraft, false},
		{EventSubmissionReceived, model.StatusDone, false},
		{EventCIStatusChanged, model.StatusSubmitted, true},
		{EventCIStatusChanged, model.StatusAssigned, false},
		{EventReviewScored, model.StatusSubmitted, true},
		{EventReviewScored, model.StatusDone, false},
		{EventReminderTick, model.StatusAssigned, true},
		{EventReminderTick, model.StatusDone, false},
	}
	for _, tc := range cases {
		err := guard(newTask(tc.status), tc.typ)
		if tc.allowed && err != nil {
			t.Errorf("guard(%s, %s): unexpected error %v", tc.typ, tc.status, err)
		}
		if !tc.allowed && err == nil {
			t.Errorf("guard(%s, %s): expected illegal transition", tc.typ, tc.status)
		}
	}
}

func TestAssignSetsAssigneeOnce(t *testing.T) {
	task := newTask(model.StatusDraft)
	cs := newChangeSet(task.ID.String())
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	assign(task, cs, "u_42", at)

	if task.Status != model.StatusAssigned {
		t.Fatalf("status = %s, want Assigned", task.Status)
	}
	if task.AssigneeID != "u_42" {
		t.Errorf("assignee = %q", task.AssigneeID)
	}
	if task.AssignedAt == nil || !task.AssignedAt.Equal(at) {
		t.Errorf("assigned_at = %v, want %v", task.AssignedAt, at)
	}
	for _, field := range []string{"status", "assignee_id", "assigned_at"} {
		if _, ok := cs.Fields[field]; !ok {
			t.Errorf("change-set missing %q", field)
		}
	}
}

func TestSubmitClearsReasonsOnResubmission(t *testing.T) {
	task := newTask(model.StatusReturned)
	task.FailedReasons = []string{"missing tests"}
	cs := newChangeSet(task.ID.String())

	submit(task, cs, "https://example.com/pr/7", "abc123")

	if task.Status != model.StatusSubmitted {
		t.Fatalf("status = %s, want Submitted", task.Status)
	}
	if len(task.FailedReasons) != 0 {
		t.Errorf("failed reasons not cleared: %v", task.FailedReasons)
	}
	if task.SubmissionURL != "https://example.com/pr/7" || task.CommitSHA != "abc123" {
		t.Errorf("submission not recorded: url=%q sha=%q", task.SubmissionURL, task.CommitSHA)
	}
}

func TestReturnForRevisionBoundedThenEscalates(t *testing.T) {
	task := newTask(model.StatusSubmitted)

	for want := 1; want <= MaxRevisions; want++ {
		escalate := returnForRevision(task, newChangeSet(task.ID.String()), []string{"too slow"})
		if escalate {
			t.Fatalf("revision %d: unexpected escalation", want)
		}
		if task.RevisionCount != want {
			t.Fatalf("revision_count = %d, want %d", task.RevisionCount, want)
		}
		task.Status = model.StatusSubmitted // resubmitted
	}

	// At the boundary the count stays put and the flag is raised instead.
	escalate := returnForRevision(task, newChangeSet(task.ID.String()), []string{"still too slow"})
	if !escalate {
		t.Fatal("expected escalation past the revision budget")
	}
	if task.RevisionCount != MaxRevisions {
		t.Errorf("revision_count = %d, want %d", task.RevisionCount, MaxRevisions)
	}
	if !task.NeedsCoordinator {
		t.Error("needs_coordinator not set")
	}
}
