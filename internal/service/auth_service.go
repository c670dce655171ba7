package service

import (
	"context"

	"go.uber.org/zap"

	"storyforge/config"
	"storyforge/internal/model"
	"storyforge/internal/story"
	"storyforge/internal/util"
)

// AuthService handles self-service registration and login.
type AuthService struct {
	users  UserStore
	teams  TeamStore
	cfg    config.JWTConfig
	logger *zap.Logger
}

func NewAuthService(users UserStore, teams TeamStore, cfg config.JWTConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		teams:  teams,
		cfg:    cfg,
		logger: logger,
	}
}

// Register creates an account with the client role and bootstraps its
// default team.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		PublicID:     util.NewPublicID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         story.RoleClient,
		Settings:     model.Settings{},
	}
	if err := s.users.Insert(ctx, user); err != nil {
		s.logger.Error("Failed to register user", zap.Error(err), zap.String("email", email))
		return nil, err
	}

	if err := bootstrapDefaultTeam(ctx, s.users, s.teams, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered successfully", zap.String("user", user.PublicID))
	return user, nil
}

// Login verifies credentials and issues a signed JWT carrying the user's
// id and role.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil || !util.CheckPassword(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user.ID, string(user.Role), s.cfg.Secret)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info("User logged in", zap.String("user", user.PublicID))
	return token, user, nil
}

// UserFromToken resolves the account named by a parsed JWT, used by the
// auth middleware.
func (s *AuthService) UserFromToken(ctx context.Context, tokenString string) (*model.User, error) {
	userID, _, err := util.ParseJWT(tokenString, s.cfg.Secret)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
