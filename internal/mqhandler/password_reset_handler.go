package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storyforge/internal/mq"
	"storyforge/internal/repository"
)

// NotificationStore is the persistence surface the worker handlers need.
// *repository.NotificationRepository implements it.
type NotificationStore interface {
	Insert(ctx context.Context, userPublicID, channel, subject, message string) (int, error)
	MarkSent(ctx context.Context, id int, at time.Time) error
}

var _ NotificationStore = (*repository.NotificationRepository)(nil)

// Mailer delivers a rendered notification. The default implementation only
// logs; a real SMTP sender slots in behind the same interface.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type LogMailer struct {
	Logger *zap.Logger
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.Logger.Info("Sending email",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_size", len(body)),
	)
	return nil
}

type PasswordResetHandler struct {
	store  NotificationStore
	mailer Mailer
	logger *zap.Logger
}

func NewPasswordResetHandler(store NotificationStore, mailer Mailer, logger *zap.Logger) *PasswordResetHandler {
	return &PasswordResetHandler{
		store:  store,
		mailer: mailer,
		logger: logger,
	}
}

func (h *PasswordResetHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var event mq.PasswordResetEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.logger.Error("Failed to unmarshal PasswordResetEvent", zap.Error(err))
		return err
	}

	h.logger.Info("Handling user.password_reset event",
		zap.String("user", event.UserPublicID),
	)

	subject := "Reset your password"
	body := fmt.Sprintf("Hi %s,\n\nUse this token to reset your password: %s\n", event.Name, event.ResetToken)

	id, err := h.store.Insert(ctx, event.UserPublicID, "EMAIL", subject, body)
	if err != nil {
		return err
	}

	if err := h.mailer.Send(ctx, event.Email, subject, body); err != nil {
		// The row is already stored, so delivery can be retried later
		// without losing the notification.
		h.logger.Error("Failed to send password reset email",
			zap.Int("notification_id", id),
			zap.Error(err),
		)
		return nil
	}

	return h.store.MarkSent(ctx, id, time.Now())
}
