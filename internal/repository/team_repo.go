package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storyforge/internal/model"
)

type TeamRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTeamRepository(db *pgxpool.Pool, logger *zap.Logger) *TeamRepository {
	return &TeamRepository{db: db, logger: logger}
}

const teamColumns = `id, public_id, key, label, description, status, plan_key, subscribed, created_at, updated_at`

// InsertForUser creates the team and links the user as a member in one
// transaction.
func (r *TeamRepository) InsertForUser(ctx context.Context, t *model.Team, userID int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO teams (public_id, key, label, description, status, plan_key, subscribed)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at
    `
	err = tx.QueryRow(ctx, query,
		t.PublicID,
		t.Key,
		t.Label,
		t.Description,
		string(t.Status),
		t.PlanKey,
		t.Subscribed,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert team",
			zap.Error(err),
			zap.String("label", t.Label),
		)
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO users_teams (user_id, team_id) VALUES ($1, $2)`,
		userID, t.ID,
	); err != nil {
		r.logger.Error("Failed to link user to team",
			zap.Error(err),
			zap.Int("user_id", userID),
			zap.Int("team_id", t.ID),
		)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	r.logger.Info("Team inserted successfully",
		zap.Int("team_id", t.ID),
		zap.String("key", t.Key),
		zap.Int("user_id", userID),
	)
	return nil
}

// FindByKeyForUser resolves the user's team by its key, nil when the user is
// not a member.
func (r *TeamRepository) FindByKeyForUser(ctx context.Context, key string, userID int) (*model.Team, error) {
	query := `
        SELECT t.id, t.public_id, t.key, t.label, t.description, t.status, t.plan_key, t.subscribed, t.created_at, t.updated_at
        FROM teams t
        JOIN users_teams ut ON ut.team_id = t.id
        WHERE t.key = $1 AND ut.user_id = $2
    `
	t, err := r.scanTeam(r.db.QueryRow(ctx, query, key, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find team by key",
			zap.Error(err),
			zap.String("key", key),
			zap.Int("user_id", userID),
		)
		return nil, err
	}
	return t, nil
}

// ListByUser returns every team the user belongs to.
func (r *TeamRepository) ListByUser(ctx context.Context, userID int) ([]model.Team, error) {
	query := `
        SELECT t.id, t.public_id, t.key, t.label, t.description, t.status, t.plan_key, t.subscribed, t.created_at, t.updated_at
        FROM teams t
        JOIN users_teams ut ON ut.team_id = t.id
        WHERE ut.user_id = $1
        ORDER BY t.created_at ASC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list teams",
			zap.Error(err),
			zap.Int("user_id", userID),
		)
		return nil, err
	}
	defer rows.Close()

	teams := []model.Team{}
	for rows.Next() {
		t, err := r.scanTeam(rows)
		if err != nil {
			r.logger.Error("Failed to scan team row", zap.Error(err))
			return nil, err
		}
		teams = append(teams, *t)
	}
	return teams, rows.Err()
}

func (r *TeamRepository) scanTeam(row pgx.Row) (*model.Team, error) {
	var t model.Team
	var status string
	if err := row.Scan(
		&t.ID,
		&t.PublicID,
		&t.Key,
		&t.Label,
		&t.Description,
		&status,
		&t.PlanKey,
		&t.Subscribed,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Status = model.TeamStatus(status)
	return &t, nil
}
