package model

import (
	"time"

	"storyforge/internal/story"
)

type User struct {
	ID              int        `json:"id"`
	PublicID        string     `json:"public_id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	Role            story.Role `json:"role"`
	Settings        Settings   `json:"settings"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CurrentTeamKey returns the team key stored in the user's settings, empty
// when no team has been selected.
func (u *User) CurrentTeamKey() string {
	if key, ok := u.Settings.Get("current_team").(string); ok {
		return key
	}
	return ""
}

// IsGuest reports whether the user is in preview-only mode.
func (u *User) IsGuest() bool {
	return u.Role == story.RoleGuest
}
