package mq

import "time"

// PasswordResetEvent asks the notification worker to deliver a reset link.
type PasswordResetEvent struct {
	UserPublicID string    `json:"user_public_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	ResetToken   string    `json:"reset_token"`
	RequestedAt  time.Time `json:"requested_at"`
}

// StoryPublishedEvent notifies the back office that a story was submitted.
type StoryPublishedEvent struct {
	ProjectPublicID string    `json:"project_public_id"`
	ProjectLabel    string    `json:"project_label"`
	UserEmail       string    `json:"user_email"`
	UserName        string    `json:"user_name"`
	PublishedAt     time.Time `json:"published_at"`
}
