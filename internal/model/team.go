package model

import "time"

type TeamStatus string

const (
	TeamActive   TeamStatus = "active"
	TeamInactive TeamStatus = "inactive"
)

type Team struct {
	ID          int        `json:"id"`
	PublicID    string     `json:"public_id"`
	Key         string     `json:"key"`
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Status      TeamStatus `json:"status"`
	// Billing scaffolding only; nothing in the workflow reads these
	// beyond display.
	PlanKey    string    `json:"plan_key"`
	Subscribed bool      `json:"subscribed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Slug is the externally shareable identifier for the team.
func (t *Team) Slug() string {
	return t.Key
}
