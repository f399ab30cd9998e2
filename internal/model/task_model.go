package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the single source of truth for a task's lifecycle position.
type TaskStatus string

const (
	StatusDraft     TaskStatus = "Draft"
	StatusAssigned  TaskStatus = "Assigned"
	StatusSubmitted TaskStatus = "Submitted"
	StatusReturned  TaskStatus = "Returned"
	StatusDone      TaskStatus = "Done"
)

type Task struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title              string     `gorm:"type:varchar(255)" json:"title"`
	Description        string     `gorm:"type:text" json:"description"`
	AcceptanceCriteria string     `gorm:"type:text" json:"acceptance_criteria"`
	SkillTags          string     `gorm:"type:varchar(255)" json:"skill_tags"` // comma separated
	Deadline           time.Time  `json:"deadline"`
	AssigneeID         string     `gorm:"type:varchar(100);index" json:"assignee_id"`
	Status             TaskStatus `gorm:"type:varchar(20)" json:"status"`
	RevisionCount      int        `json:"revision_count"`
	FailedReasons      []string   `gorm:"serializer:json;type:jsonb" json:"failed_reasons"`
	NeedsCoordinator   bool       `json:"needs_coordinator"`
	SubmissionURL      string     `gorm:"type:text" json:"submission_url"`
	CommitSHA          string     `gorm:"type:varchar(64);index" json:"commit_sha"`
	ChatID             string     `gorm:"type:varchar(100);index" json:"chat_id"` // task sub-channel
	LastEventID        string     `gorm:"type:varchar(100)" json:"last_event_id"`
	CreatedAt          time.Time  `json:"created_at"`
	AssignedAt         *time.Time `json:"assigned_at"`
	DoneAt             *time.Time `json:"done_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (t *Task) TableName() string {
	return "tasks"
}

// TagList splits the comma separated skill tags into a normalized slice.
func (t *Task) TagList() []string {
	return SplitTags(t.SkillTags)
}

func SplitTags(tags string) []string {
	parts := strings.Split(tags, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
