package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

type Candidate struct {
	UserID         string          `gorm:"type:varchar(100);primaryKey" json:"user_id"`
	Name           string          `gorm:"type:varchar(255)" json:"name"`
	SkillTags      string          `gorm:"type:varchar(255)" json:"skill_tags"` // comma separated
	HoursAvailable float64         `gorm:"type:float" json:"hours_available"`
	Performance    float64         `gorm:"type:float" json:"performance"` // updated externally, read-only here
	LastDoneAt     *time.Time      `json:"last_done_at"`
	Embedding      pgvector.Vector `gorm:"type:vector(3072)" json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (c *Candidate) TableName() string {
	return "candidates"
}

func (c *Candidate) TagList() []string {
	return SplitTags(c.SkillTags)
}
