package service

import (
	"context"
	"errors"
	"time"

	"storyforge/internal/model"
	"storyforge/internal/repository"
	"storyforge/internal/story"
)

// Precondition and lookup errors raised by the service layer. The workflow
// layer converts them into flashed messages and safe redirects; anything
// that escapes is a programming error handled generically at the HTTP
// boundary.
var (
	ErrNoProjectSet       = errors.New("no project set")
	ErrNoTokenSet         = errors.New("no token set")
	ErrNoTeamSelected     = errors.New("no team selected")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// TokenStore is the persistence surface required by TokenService.
// *repository.TokenRepository implements it.
type TokenStore interface {
	Insert(ctx context.Context, t *model.Token) error
	FindByPublicID(ctx context.Context, publicID string) (*model.Token, error)
	FindActive(ctx context.Context, projectID, userID int, f repository.TokenFilter) (*model.Token, error)
	FindLatestByProjectStatus(ctx context.Context, userID int, status story.Status, projectID int, f repository.TokenFilter) (*model.Token, error)
	Revoke(ctx context.Context, tokenID int, at time.Time) error
	UpdateSettings(ctx context.Context, tokenID int, settings model.Settings) error
	ListByUser(ctx context.Context, userID int) ([]model.Token, error)
}

// ProjectStore is the persistence surface required by ProjectService.
// *repository.ProjectRepository implements it.
type ProjectStore interface {
	InsertForTeam(ctx context.Context, p *model.Project, teamID int) error
	FindByPublicID(ctx context.Context, publicID string) (*model.Project, error)
	FindByID(ctx context.Context, id int) (*model.Project, error)
	UpdateStatus(ctx context.Context, projectID int, status story.Status) (bool, error)
	ListByTeam(ctx context.Context, teamID int) ([]model.Project, error)
}

// ResponseStore persists form answers. *repository.ResponseRepository
// implements it.
type ResponseStore interface {
	Upsert(ctx context.Context, projectID int, step, key, value string) error
	ListByProjectSteps(ctx context.Context, projectID int, steps []string) ([]model.Response, error)
}

// UserStore is the persistence surface required by the account and auth
// services. *repository.UserRepository implements it.
type UserStore interface {
	Insert(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByPublicID(ctx context.Context, publicID string) (*model.User, error)
	FindByID(ctx context.Context, id int) (*model.User, error)
	UpdateSettings(ctx context.Context, userID int, settings model.Settings) error
	UpdatePasswordHash(ctx context.Context, userID int, hash string) error
	List(ctx context.Context, limit, offset int) ([]model.User, error)
	Search(ctx context.Context, term string, limit int) ([]model.User, error)
	Count(ctx context.Context) (int, error)
}

// TeamStore is the persistence surface for team membership.
// *repository.TeamRepository implements it.
type TeamStore interface {
	InsertForUser(ctx context.Context, t *model.Team, userID int) error
	FindByKeyForUser(ctx context.Context, key string, userID int) (*model.Team, error)
	ListByUser(ctx context.Context, userID int) ([]model.Team, error)
}

// Publisher emits notification events. *mq.Publisher implements it.
type Publisher interface {
	Publish(routingKey string, payload any) error
}
