package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storyforge/internal/model"
	"storyforge/internal/story"
)

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

const projectColumns = `id, public_id, key, label, description, status, created_at, updated_at`

// InsertForTeam creates the project in DRAFT status and links it to the
// owning team in one transaction.
func (r *ProjectRepository) InsertForTeam(ctx context.Context, p *model.Project, teamID int) error {
	r.logger.Debug("Inserting project",
		zap.String("label", p.Label),
		zap.Int("team_id", teamID),
	)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO projects (public_id, key, label, description, status)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at
    `
	err = tx.QueryRow(ctx, query,
		p.PublicID,
		p.Key,
		p.Label,
		p.Description,
		int(story.StatusDraft),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert project",
			zap.Error(err),
			zap.Int("team_id", teamID),
		)
		return err
	}
	p.Status = story.StatusDraft

	if _, err := tx.Exec(ctx,
		`INSERT INTO teams_projects (team_id, project_id) VALUES ($1, $2)`,
		teamID, p.ID,
	); err != nil {
		r.logger.Error("Failed to link project to team",
			zap.Error(err),
			zap.Int("project_id", p.ID),
			zap.Int("team_id", teamID),
		)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	r.logger.Info("Project inserted successfully",
		zap.Int("project_id", p.ID),
		zap.String("public_id", p.PublicID),
		zap.Int("team_id", teamID),
	)
	return nil
}

func (r *ProjectRepository) FindByPublicID(ctx context.Context, publicID string) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE public_id = $1`

	p, err := r.scanProject(r.db.QueryRow(ctx, query, publicID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find project by public id",
			zap.Error(err),
			zap.String("public_id", publicID),
		)
		return nil, err
	}
	return p, nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, id int) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := r.scanProject(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find project by id",
			zap.Error(err),
			zap.Int("project_id", id),
		)
		return nil, err
	}
	return p, nil
}

// UpdateStatus persists a status transition and reports whether a row was
// actually written.
func (r *ProjectRepository) UpdateStatus(ctx context.Context, projectID int, status story.Status) (bool, error) {
	query := `UPDATE projects SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, projectID, int(status))
	if err != nil {
		r.logger.Error("Failed to update project status",
			zap.Error(err),
			zap.Int("project_id", projectID),
			zap.Int("status", int(status)),
		)
		return false, err
	}

	r.logger.Info("Project status updated",
		zap.Int("project_id", projectID),
		zap.String("status", status.Key()),
	)
	return result.RowsAffected() > 0, nil
}

// ListByTeam returns the team's projects, newest first, for the dashboard.
func (r *ProjectRepository) ListByTeam(ctx context.Context, teamID int) ([]model.Project, error) {
	query := `
        SELECT p.id, p.public_id, p.key, p.label, p.description, p.status, p.created_at, p.updated_at
        FROM projects p
        JOIN teams_projects tp ON tp.project_id = p.id
        WHERE tp.team_id = $1
        ORDER BY p.created_at DESC
    `
	rows, err := r.db.Query(ctx, query, teamID)
	if err != nil {
		r.logger.Error("Failed to list projects for team",
			zap.Error(err),
			zap.Int("team_id", teamID),
		)
		return nil, err
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := r.scanProject(rows)
		if err != nil {
			r.logger.Error("Failed to scan project row", zap.Error(err))
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (r *ProjectRepository) scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	var status int
	if err := row.Scan(
		&p.ID,
		&p.PublicID,
		&p.Key,
		&p.Label,
		&p.Description,
		&status,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Status = story.Status(status)
	return &p, nil
}
