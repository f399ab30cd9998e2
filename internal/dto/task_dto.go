package dto

import (
	"time"

	"github.com/google/uuid"
)

type TaskDTO struct {
	ID                 uuid.UUID  `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	AcceptanceCriteria string     `json:"acceptance_criteria"`
	SkillTags          string     `json:"skill_tags"`
	Deadline           time.Time  `json:"deadline"`
	AssigneeID         string     `json:"assignee_id,omitempty"`
	Status             string     `json:"status"`
	RevisionCount      int        `json:"revision_count"`
	FailedReasons      []string   `json:"failed_reasons,omitempty"`
	NeedsCoordinator   bool       `json:"needs_coordinator"`
	SubmissionURL      string     `json:"submission_url,omitempty"`
	ChatID             string     `json:"chat_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	AssignedAt         *time.Time `json:"assigned_at,omitempty"`
	DoneAt             *time.Time `json:"done_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
