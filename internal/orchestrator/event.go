package orchestrator

// EventType identifies an inbound event. The payload shape depends on it.
type EventType string

const (
	EventTaskCreated        EventType = "task_created"
	EventCandidateSelected  EventType = "candidate_selected"
	EventSubmissionReceived EventType = "submission_received"
	EventCIStatusChanged    EventType = "ci_status_changed"
	EventReviewScored       EventType = "review_scored"
	EventReminderTick       EventType = "reminder_tick"
)

// Event is a single inbound occurrence delivered by an external collaborator
// (chat platform, CI webhook, reminder ticker). Delivery may repeat; the
// event ID is what the deduplicator keys on.
type Event struct {
	ID      string    `json:"event_id"`
	Type    EventType `json:"type"`
	TaskID  string    `json:"task_id"`
	Payload Payload   `json:"payload"`
}

// Payload carries the per-type event data. Only the fields relevant to the
// event's type are set:
//
//	candidate_selected:  CandidateID
//	submission_received: SubmissionURL, CommitSHA
//	ci_status_changed:   CIStatus
//	review_scored:       Score, Reasons
type Payload struct {
	CandidateID   string   `json:"candidate_id,omitempty"`
	SubmissionURL string   `json:"submission_url,omitempty"`
	CommitSHA     string   `json:"commit_sha,omitempty"`
	CIStatus      CIStatus `json:"status,omitempty"`
	Score         float64  `json:"score,omitempty"`
	Reasons       []string `json:"reasons,omitempty"`
}

// ActionKind names an outbound effect for the external messaging/storage
// collaborators to perform. The core never performs these itself.
type ActionKind string

const (
	ActionNotify           ActionKind = "notify"
	ActionCreateSubchannel ActionKind = "create_subchannel"
	ActionInvite           ActionKind = "invite"
	ActionPersistTask      ActionKind = "persist_task"
	ActionEscalate         ActionKind = "escalate"
)

type OutboundAction struct {
	Kind   ActionKind     `json:"kind"`
	Target string         `json:"target"` // chat id, user id, or "coordinator"
	Data   map[string]any `json:"data,omitempty"`
}

// ChangeSet is the minimal set of field updates the external store needs to
// persist a transition. Never a full row dump, so writes stay auditable.
type ChangeSet struct {
	TaskID string         `json:"task_id"`
	Fields map[string]any `json:"fields"`
}

func newChangeSet(taskID string) *ChangeSet {
	return &ChangeSet{TaskID: taskID, Fields: map[string]any{}}
}

func (cs *ChangeSet) set(field string, value any) {
	cs.Fields[field] = value
}
