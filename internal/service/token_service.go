package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storyforge/config"
	"storyforge/internal/metrics"
	"storyforge/internal/model"
	"storyforge/internal/repository"
	"storyforge/internal/session"
	"storyforge/internal/story"
	"storyforge/internal/util"
)

// QueryOption tunes a single token lookup. Options replace the fluent
// bypass flags of earlier designs so no hidden state leaks between calls.
type QueryOption func(*queryOptions)

type queryOptions struct {
	bypassExpiration bool
	bypassRevocation bool
}

// WithBypassExpiration keeps expired tokens visible to the lookup. Used by
// transition checks that must see a published project regardless of the
// token's age.
func WithBypassExpiration() QueryOption {
	return func(o *queryOptions) { o.bypassExpiration = true }
}

// WithBypassRevocation keeps revoked tokens visible to the lookup.
func WithBypassRevocation() QueryOption {
	return func(o *queryOptions) { o.bypassRevocation = true }
}

// TokenService manages the story access token lifecycle: issue, verify,
// refresh, revoke and the saved resume position.
type TokenService struct {
	tokens TokenStore
	cfg    config.TokenConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewTokenService(tokens TokenStore, cfg config.TokenConfig, logger *zap.Logger) *TokenService {
	return &TokenService{
		tokens: tokens,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *TokenService) filter(opts ...QueryOption) repository.TokenFilter {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return repository.TokenFilter{
		IncludeRevoked: o.bypassRevocation,
		// Expiration is only enforced when configured; see
		// config.TokenConfig.
		IncludeExpired: o.bypassExpiration || !s.cfg.EnforceExpiration,
	}
}

// CreateToken issues a fresh token for the project and user, expiring after
// the configured TTL.
func (s *TokenService) CreateToken(ctx context.Context, project *model.Project, user *model.User) (*model.Token, error) {
	if project == nil {
		return nil, ErrNoProjectSet
	}

	token := &model.Token{
		PublicID:  util.NewTokenID(),
		UserID:    user.ID,
		ProjectID: project.ID,
		Settings:  model.Settings{},
		ExpiresAt: s.now().Add(s.cfg.TTL),
	}

	if err := s.tokens.Insert(ctx, token); err != nil {
		return nil, err
	}

	s.logger.Info("Story token created",
		zap.String("token", token.PublicID),
		zap.String("project", project.PublicID),
		zap.Int("user_id", user.ID),
	)
	return token, nil
}

// GetToken returns the user's active token for the project, nil when none
// passes the filters.
func (s *TokenService) GetToken(ctx context.Context, project *model.Project, user *model.User, opts ...QueryOption) (*model.Token, error) {
	if project == nil {
		return nil, ErrNoProjectSet
	}
	return s.tokens.FindActive(ctx, project.ID, user.ID, s.filter(opts...))
}

// VerifyToken reports whether an active token exists for (project, user).
func (s *TokenService) VerifyToken(ctx context.Context, project *model.Project, user *model.User, opts ...QueryOption) (bool, error) {
	token, err := s.GetToken(ctx, project, user, opts...)
	if err != nil {
		return false, err
	}
	return token != nil, nil
}

// VerifyTokenID reports whether the supplied public identifier names an
// active token belonging to this user and project. This is the check run on
// tokens arriving from the client.
func (s *TokenService) VerifyTokenID(ctx context.Context, publicID string, project *model.Project, user *model.User, opts ...QueryOption) (bool, error) {
	if project == nil {
		return false, ErrNoProjectSet
	}

	token, err := s.tokens.FindByPublicID(ctx, publicID)
	if err != nil {
		return false, err
	}
	if token == nil || token.UserID != user.ID || token.ProjectID != project.ID {
		return false, nil
	}

	f := s.filter(opts...)
	if !f.IncludeRevoked && token.IsRevoked() {
		return false, nil
	}
	if !f.IncludeExpired && token.IsExpired() {
		return false, nil
	}
	return true, nil
}

// ResolveToken looks a token up by public identifier. A missing token
// yields (nil, nil); callers must check before use.
func (s *TokenService) ResolveToken(ctx context.Context, publicID string) (*model.Token, error) {
	return s.tokens.FindByPublicID(ctx, publicID)
}

// GetTokenByProjectStatus finds the user's most recently created token
// whose project currently has the given status. Pass a nil project to
// search across all of the user's projects.
func (s *TokenService) GetTokenByProjectStatus(ctx context.Context, status story.Status, project *model.Project, user *model.User, opts ...QueryOption) (*model.Token, error) {
	projectID := 0
	if project != nil {
		projectID = project.ID
	}
	return s.tokens.FindLatestByProjectStatus(ctx, user.ID, status, projectID, s.filter(opts...))
}

// RefreshToken revokes the token and replaces it with a fresh one for the
// same (user, project) pair, carrying the settings blob over so the saved
// position survives.
func (s *TokenService) RefreshToken(ctx context.Context, token *model.Token) (*model.Token, error) {
	if token == nil {
		return nil, ErrNoTokenSet
	}

	revokedAt := s.now()
	if err := s.tokens.Revoke(ctx, token.ID, revokedAt); err != nil {
		return nil, err
	}
	token.RevokedAt = &revokedAt

	fresh := &model.Token{
		PublicID:  util.NewTokenID(),
		UserID:    token.UserID,
		ProjectID: token.ProjectID,
		Settings:  token.Settings.Clone(),
		ExpiresAt: s.now().Add(s.cfg.TTL),
	}
	if err := s.tokens.Insert(ctx, fresh); err != nil {
		return nil, err
	}
	if err := s.tokens.UpdateSettings(ctx, fresh.ID, fresh.Settings); err != nil {
		return nil, err
	}

	metrics.IncrementTokensRefreshed()
	s.logger.Info("Story token refreshed",
		zap.String("old_token", token.PublicID),
		zap.String("new_token", fresh.PublicID),
	)
	return fresh, nil
}

// SaveLastPosition records where the user left off, in both the session
// store and the token's durable settings blob.
func (s *TokenService) SaveLastPosition(ctx context.Context, sessions session.Store, sessionID string, token *model.Token, step string, page int) error {
	if token == nil {
		return ErrNoTokenSet
	}

	pos := model.LastPosition{Step: step, Page: page}
	if err := sessions.SetLastPosition(ctx, sessionID, pos); err != nil {
		// The session copy is ephemeral convenience; the token blob is
		// the durable record, so keep going.
		s.logger.Warn("Failed to save session position", zap.Error(err))
	}

	token.Settings.SetLastPosition(step, page)
	return s.tokens.UpdateSettings(ctx, token.ID, token.Settings)
}

// IsExpired reports whether the token's expiration timestamp has passed,
// regardless of the enforcement policy.
func (s *TokenService) IsExpired(token *model.Token) bool {
	return token.ExpiresAt.Before(s.now())
}

// IsRevoked reports whether the token has been revoked.
func (s *TokenService) IsRevoked(token *model.Token) bool {
	return token.IsRevoked()
}

// TokensByUser lists every token issued to the user, for the admin
// back-office.
func (s *TokenService) TokensByUser(ctx context.Context, userID int) ([]model.Token, error) {
	return s.tokens.ListByUser(ctx, userID)
}
