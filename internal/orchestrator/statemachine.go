package orchestrator

import (
	"time"

	"taskbot/internal/model"
)

// MaxRevisions bounds the Submitted <-> Returned loop. Once a task has been
// returned this many times, a further failed evaluation flags the task for
// coordinator escalation instead of looping again.
const MaxRevisions = 2

// expectedStatus maps each event type to the task statuses it may legally
// target. An event arriving for a task in any other status is rejected as an
// illegal transition and produces no state change.
var expectedStatus = map[EventType][]model.TaskStatus{
	EventTaskCreated:        {model.StatusDraft},
	EventCandidateSelected:  {model.StatusDraft},
	EventSubmissionReceived: {model.StatusAssigned, model.StatusReturned},
	EventCIStatusChanged:    {model.StatusSubmitted},
	EventReviewScored:       {model.StatusSubmitted},
	EventReminderTick:       {model.StatusAssigned, model.StatusSubmitted, model.StatusReturned},
}

func guard(task *model.Task, typ EventType) error {
	allowed, ok := expectedStatus[typ]
	if !ok {
		return violationf("unknown event type %q", typ)
	}
	for _, s := range allowed {
		if task.Status == s {
			return nil
		}
	}
	return illegalf("event %s targets task %s in status %s", typ, task.ID, task.Status)
}

// assign moves a Draft task to Assigned. assignee_id and assigned_at are set
// exactly once per assignment cycle.
func assign(task *model.Task, cs *ChangeSet, candidateID string, now time.Time) {
	task.Status = model.StatusAssigned
	task.AssigneeID = candidateID
	task.AssignedAt = &now
	cs.set("status", task.Status)
	cs.set("assignee_id", task.AssigneeID)
	cs.set("assigned_at", now)
}

// submit records a submission. A resubmission out of Returned clears the
// prior failed reasons.
func submit(task *model.Task, cs *ChangeSet, url, sha string) {
	if task.Status == model.StatusReturned {
		task.FailedReasons = nil
		cs.set("failed_reasons", []string(nil))
	}
	task.Status = model.StatusSubmitted
	task.SubmissionURL = url
	cs.set("status", task.Status)
	cs.set("submission_url", url)
	if sha != "" {
		task.CommitSHA = sha
		cs.set("commit_sha", sha)
	}
}

// complete moves a Submitted task to Done. done_at is set once and never
// overwritten; the archive timer is an external concern.
func complete(task *model.Task, cs *ChangeSet, now time.Time) {
	task.Status = model.StatusDone
	task.DoneAt = &now
	cs.set("status", task.Status)
	cs.set("done_at", now)
}

// returnForRevision moves a Submitted task back to Returned with the failed
// reasons attached. Within the revision budget the count is incremented; at
// the boundary the count stays put and the escalation flag is raised instead.
// Returns true when the task now needs the coordinator.
func returnForRevision(task *model.Task, cs *ChangeSet, reasons []string) bool {
	task.Status = model.StatusReturned
	task.FailedReasons = reasons
	cs.set("status", task.Status)
	cs.set("failed_reasons", reasons)
	if task.RevisionCount < MaxRevisions {
		task.RevisionCount++
		cs.set("revision_count", task.RevisionCount)
		return false
	}
	task.NeedsCoordinator = true
	cs.set("needs_coordinator", true)
	return true
}
