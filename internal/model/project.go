package model

import (
	"time"

	"storyforge/internal/story"
)

type Project struct {
	ID          int          `json:"id"`
	PublicID    string       `json:"public_id"`
	Key         string       `json:"key"`
	Label       string       `json:"label"`
	Description string       `json:"description"`
	Status      story.Status `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Slug is the externally shareable identifier derived from the key.
func (p *Project) Slug() string {
	return p.Key
}

// IsComplete reports whether the project has been published.
func (p *Project) IsComplete() bool {
	return p.Status == story.StatusPublished
}
