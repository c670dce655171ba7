package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storyforge/internal/mq"
)

type StoryPublishedHandler struct {
	store  NotificationStore
	mailer Mailer
	logger *zap.Logger
}

func NewStoryPublishedHandler(store NotificationStore, mailer Mailer, logger *zap.Logger) *StoryPublishedHandler {
	return &StoryPublishedHandler{
		store:  store,
		mailer: mailer,
		logger: logger,
	}
}

func (h *StoryPublishedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var event mq.StoryPublishedEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.logger.Error("Failed to unmarshal StoryPublishedEvent", zap.Error(err))
		return err
	}

	h.logger.Info("Handling story.published event",
		zap.String("project", event.ProjectPublicID),
	)

	subject := fmt.Sprintf("Your submission %q has been received", event.ProjectLabel)
	body := fmt.Sprintf("Hi %s,\n\nYour form %q was submitted on %s. Thank you!\n",
		event.UserName, event.ProjectLabel, event.PublishedAt.Format("2006-01-02 15:04"))

	id, err := h.store.Insert(ctx, event.ProjectPublicID, "EMAIL", subject, body)
	if err != nil {
		return err
	}

	if err := h.mailer.Send(ctx, event.UserEmail, subject, body); err != nil {
		h.logger.Error("Failed to send submission confirmation",
			zap.Int("notification_id", id),
			zap.Error(err),
		)
		return nil
	}

	return h.store.MarkSent(ctx, id, time.Now())
}
