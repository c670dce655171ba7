package model

import "time"

// Response is one saved answer, unique per (project, step, key). Values are
// stored as strings and cast back to their semantic type at read time.
type Response struct {
	ID        int       `json:"id"`
	ProjectID int       `json:"project_id"`
	Step      string    `json:"step"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
