package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storyforge/internal/metrics"
	"storyforge/internal/model"
)

type ResponseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewResponseRepository(db *pgxpool.Pool, logger *zap.Logger) *ResponseRepository {
	return &ResponseRepository{db: db, logger: logger}
}

// Upsert writes one answer, keeping at most one row per (project, step, key).
func (r *ResponseRepository) Upsert(ctx context.Context, projectID int, step, key, value string) error {
	r.logger.Debug("Upserting response",
		zap.Int("project_id", projectID),
		zap.String("step", step),
		zap.String("key", key),
	)

	query := `
        INSERT INTO responses (project_id, step, key, value)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (project_id, step, key)
        DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
    `
	start := time.Now()
	_, err := r.db.Exec(ctx, query, projectID, step, key, value)
	metrics.RecordDBQueryDuration("upsert", "responses", time.Since(start))
	if err != nil {
		r.logger.Error("Failed to upsert response",
			zap.Error(err),
			zap.Int("project_id", projectID),
			zap.String("step", step),
			zap.String("key", key),
		)
		return err
	}
	return nil
}

// ListByProjectSteps fetches every saved answer for the project within the
// given steps.
func (r *ResponseRepository) ListByProjectSteps(ctx context.Context, projectID int, steps []string) ([]model.Response, error) {
	query := `
        SELECT id, project_id, step, key, value, created_at, updated_at
        FROM responses
        WHERE project_id = $1 AND step = ANY($2)
    `
	start := time.Now()
	rows, err := r.db.Query(ctx, query, projectID, steps)
	metrics.RecordDBQueryDuration("select", "responses", time.Since(start))
	if err != nil {
		r.logger.Error("Failed to query responses",
			zap.Error(err),
			zap.Int("project_id", projectID),
		)
		return nil, err
	}
	defer rows.Close()

	responses := []model.Response{}
	for rows.Next() {
		var resp model.Response
		if err := rows.Scan(
			&resp.ID,
			&resp.ProjectID,
			&resp.Step,
			&resp.Key,
			&resp.Value,
			&resp.CreatedAt,
			&resp.UpdatedAt,
		); err != nil {
			r.logger.Error("Failed to scan response row", zap.Error(err))
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}
