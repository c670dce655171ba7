package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storyforge/internal/model"
	"storyforge/internal/story"
)

type UserRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

const userColumns = `id, public_id, name, email, password_hash, role, settings, email_verified_at, created_at, updated_at`

func (r *UserRepository) Insert(ctx context.Context, u *model.User) error {
	settings, err := json.Marshal(u.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode user settings: %w", err)
	}

	query := `
        INSERT INTO users (public_id, name, email, password_hash, role, settings, email_verified_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at
    `
	err = r.db.QueryRow(ctx, query,
		u.PublicID,
		u.Name,
		u.Email,
		u.PasswordHash,
		string(u.Role),
		settings,
		u.EmailVerifiedAt,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		r.logger.Error("Failed to insert user",
			zap.Error(err),
			zap.String("email", u.Email),
		)
		return err
	}

	r.logger.Info("User inserted successfully",
		zap.Int("user_id", u.ID),
		zap.String("email", u.Email),
	)
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.findOne(ctx, query, email)
}

func (r *UserRepository) FindByPublicID(ctx context.Context, publicID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE public_id = $1`
	return r.findOne(ctx, query, publicID)
}

func (r *UserRepository) FindByID(ctx context.Context, id int) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *UserRepository) UpdateSettings(ctx context.Context, userID int, settings model.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode user settings: %w", err)
	}

	query := `UPDATE users SET settings = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, userID, raw); err != nil {
		r.logger.Error("Failed to update user settings",
			zap.Error(err),
			zap.Int("user_id", userID),
		)
		return err
	}
	return nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, userID int, hash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, userID, hash); err != nil {
		r.logger.Error("Failed to update password hash",
			zap.Error(err),
			zap.Int("user_id", userID),
		)
		return err
	}
	return nil
}

// List returns one page of users, newest first.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.findMany(ctx, query, limit, offset)
}

// Search matches users by name or email substring, case-insensitively.
func (r *UserRepository) Search(ctx context.Context, term string, limit int) ([]model.User, error) {
	query := `
        SELECT ` + userColumns + `
        FROM users
        WHERE name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
        ORDER BY created_at DESC
        LIMIT $2
    `
	return r.findMany(ctx, query, term, limit)
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		r.logger.Error("Failed to count users", zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	u, err := r.scanUser(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to query user", zap.Error(err))
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) findMany(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query users", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			r.logger.Error("Failed to scan user row", zap.Error(err))
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	var settings []byte
	if err := row.Scan(
		&u.ID,
		&u.PublicID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&role,
		&settings,
		&u.EmailVerifiedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = story.Role(role)
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &u.Settings); err != nil {
			r.logger.Warn("Malformed user settings blob",
				zap.Int("user_id", u.ID),
				zap.Error(err),
			)
			u.Settings = model.Settings{}
		}
	}
	return &u, nil
}
