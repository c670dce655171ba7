package model

import "time"

// Token grants one user resumable access to one project's form wizard.
type Token struct {
	ID        int        `json:"id"`
	PublicID  string     `json:"public_id"`
	UserID    int        `json:"user_id"`
	ProjectID int        `json:"project_id"`
	Settings  Settings   `json:"settings"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsExpired reports whether the expiration timestamp is in the past.
func (t *Token) IsExpired() bool {
	return t.ExpiresAt.Before(time.Now())
}

// IsRevoked reports whether the token carries a revocation timestamp.
func (t *Token) IsRevoked() bool {
	return t.RevokedAt != nil
}
