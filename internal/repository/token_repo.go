package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storyforge/internal/model"
	"storyforge/internal/story"
)

// TokenFilter tunes which tokens count as active for a lookup. The zero
// value applies the standard filters (revoked and expired excluded).
type TokenFilter struct {
	IncludeRevoked bool
	IncludeExpired bool
}

type TokenRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTokenRepository(db *pgxpool.Pool, logger *zap.Logger) *TokenRepository {
	return &TokenRepository{db: db, logger: logger}
}

const tokenColumns = `id, public_id, user_id, project_id, settings, expires_at, revoked_at, created_at, updated_at`

func (r *TokenRepository) Insert(ctx context.Context, t *model.Token) error {
	r.logger.Debug("Inserting token",
		zap.Int("user_id", t.UserID),
		zap.Int("project_id", t.ProjectID),
	)

	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode token settings: %w", err)
	}

	query := `
        INSERT INTO tokens (public_id, user_id, project_id, settings, expires_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at
    `
	err = r.db.QueryRow(ctx, query,
		t.PublicID,
		t.UserID,
		t.ProjectID,
		settings,
		t.ExpiresAt,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)

	if err != nil {
		r.logger.Error("Failed to insert token",
			zap.Error(err),
			zap.Int("user_id", t.UserID),
			zap.Int("project_id", t.ProjectID),
		)
		return err
	}

	r.logger.Info("Token inserted successfully",
		zap.Int("token_id", t.ID),
		zap.String("public_id", t.PublicID),
	)
	return nil
}

func (r *TokenRepository) FindByPublicID(ctx context.Context, publicID string) (*model.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE public_id = $1`

	t, err := r.scanToken(r.db.QueryRow(ctx, query, publicID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find token by public id",
			zap.Error(err),
			zap.String("public_id", publicID),
		)
		return nil, err
	}
	return t, nil
}

// FindActive returns the token for (project, user) that passes the filter,
// or nil when none exists.
func (r *TokenRepository) FindActive(ctx context.Context, projectID, userID int, f TokenFilter) (*model.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE project_id = $1 AND user_id = $2` +
		filterClause(f) + ` ORDER BY created_at DESC LIMIT 1`

	t, err := r.scanToken(r.db.QueryRow(ctx, query, projectID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find active token",
			zap.Error(err),
			zap.Int("project_id", projectID),
			zap.Int("user_id", userID),
		)
		return nil, err
	}
	return t, nil
}

// FindLatestByProjectStatus returns the user's most recently created token
// whose project currently has the given status. projectID of zero means any
// project.
func (r *TokenRepository) FindLatestByProjectStatus(ctx context.Context, userID int, status story.Status, projectID int, f TokenFilter) (*model.Token, error) {
	query := `
        SELECT t.id, t.public_id, t.user_id, t.project_id, t.settings, t.expires_at, t.revoked_at, t.created_at, t.updated_at
        FROM tokens t
        JOIN projects p ON p.id = t.project_id
        WHERE t.user_id = $1 AND p.status = $2
    `
	args := []any{userID, int(status)}
	if projectID != 0 {
		query += ` AND t.project_id = $3`
		args = append(args, projectID)
	}
	if !f.IncludeRevoked {
		query += ` AND t.revoked_at IS NULL`
	}
	if !f.IncludeExpired {
		query += ` AND t.expires_at > NOW()`
	}
	query += ` ORDER BY t.created_at DESC LIMIT 1`

	t, err := r.scanToken(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find token by project status",
			zap.Error(err),
			zap.Int("user_id", userID),
			zap.Int("status", int(status)),
		)
		return nil, err
	}
	return t, nil
}

func (r *TokenRepository) Revoke(ctx context.Context, tokenID int, at time.Time) error {
	query := `UPDATE tokens SET revoked_at = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, tokenID, at)
	if err != nil {
		r.logger.Error("Failed to revoke token",
			zap.Error(err),
			zap.Int("token_id", tokenID),
		)
		return err
	}

	r.logger.Info("Token revoked",
		zap.Int("token_id", tokenID),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

func (r *TokenRepository) UpdateSettings(ctx context.Context, tokenID int, settings model.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode token settings: %w", err)
	}

	query := `UPDATE tokens SET settings = $2, updated_at = NOW() WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, tokenID, raw); err != nil {
		r.logger.Error("Failed to update token settings",
			zap.Error(err),
			zap.Int("token_id", tokenID),
		)
		return err
	}
	return nil
}

// ListByUser returns all tokens issued to the user, newest first. Used by
// the admin back-office.
func (r *TokenRepository) ListByUser(ctx context.Context, userID int) ([]model.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list tokens",
			zap.Error(err),
			zap.Int("user_id", userID),
		)
		return nil, err
	}
	defer rows.Close()

	tokens := []model.Token{}
	for rows.Next() {
		t, err := r.scanToken(rows)
		if err != nil {
			r.logger.Error("Failed to scan token row", zap.Error(err))
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

func filterClause(f TokenFilter) string {
	clause := ""
	if !f.IncludeRevoked {
		clause += ` AND revoked_at IS NULL`
	}
	if !f.IncludeExpired {
		clause += ` AND expires_at > NOW()`
	}
	return clause
}

func (r *TokenRepository) scanToken(row pgx.Row) (*model.Token, error) {
	var t model.Token
	var settings []byte
	if err := row.Scan(
		&t.ID,
		&t.PublicID,
		&t.UserID,
		&t.ProjectID,
		&settings,
		&t.ExpiresAt,
		&t.RevokedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			r.logger.Warn("Malformed token settings blob",
				zap.Int("token_id", t.ID),
				zap.Error(err),
			)
			t.Settings = model.Settings{}
		}
	}
	return &t, nil
}
