package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

func (r *NotificationRepository) Insert(ctx context.Context, userPublicID, channel, subject, message string) (int, error) {
	query := `
        INSERT INTO notifications (user_public_id, channel, subject, message)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `
	var id int
	err := r.db.QueryRow(ctx, query, userPublicID, channel, subject, message).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to insert notification", zap.Error(err))
		return 0, err
	}

	r.logger.Info("Notification inserted successfully",
		zap.Int("id", id),
		zap.String("user", userPublicID),
		zap.String("channel", channel),
	)
	return id, nil
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id int, at time.Time) error {
	query := `UPDATE notifications SET sent_at = $2 WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, at)
	return err
}
