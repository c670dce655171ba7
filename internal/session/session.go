package session

import (
	"context"

	"storyforge/internal/model"
)

// Flash levels surfaced to the rendering layer.
const (
	LevelError   = "error"
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
)

// Flash is a one-shot message carried across a redirect.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Store holds per-session ephemeral state: flashed messages and the
// request-scoped copy of the user's last wizard position. The durable copy
// of the position lives in the token settings blob.
type Store interface {
	PushFlash(ctx context.Context, sessionID string, flash Flash) error
	// PopFlashes drains and returns the pending messages for the session.
	PopFlashes(ctx context.Context, sessionID string) ([]Flash, error)
	SetLastPosition(ctx context.Context, sessionID string, pos model.LastPosition) error
	LastPosition(ctx context.Context, sessionID string) (model.LastPosition, bool, error)
}
