package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"storyforge/internal/model"
	"storyforge/internal/mq"
	"storyforge/internal/story"
	"storyforge/internal/util"
)

// AccountService covers administrative user management: provisioning
// accounts with generated passwords and kicking off password resets.
type AccountService struct {
	users     UserStore
	teams     TeamStore
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewAccountService(users UserStore, teams TeamStore, publisher Publisher, logger *zap.Logger) *AccountService {
	return &AccountService{
		users:     users,
		teams:     teams,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateUser provisions an account with a generated password and bootstraps
// its default team. The generated password is returned once for out-of-band
// delivery and never stored in the clear.
func (s *AccountService) CreateUser(ctx context.Context, name, email string, role story.Role) (*model.User, string, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", ErrEmailTaken
	}

	if !role.Valid() {
		role = story.RoleClient
	}

	password := util.GeneratePassword()
	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user := &model.User{
		PublicID:     util.NewPublicID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Settings:     model.Settings{},
	}
	if err := s.users.Insert(ctx, user); err != nil {
		s.logger.Error("Failed to create user", zap.Error(err), zap.String("email", email))
		return nil, "", err
	}

	if err := bootstrapDefaultTeam(ctx, s.users, s.teams, user); err != nil {
		return nil, "", err
	}

	s.logger.Info("User created successfully",
		zap.String("user", user.PublicID),
		zap.String("role", string(role)),
	)
	return user, password, nil
}

// RequestPasswordReset issues a reset token and hands delivery off to the
// notification worker. Unknown emails report success to the caller so the
// endpoint cannot be used to probe for accounts.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		s.logger.Info("Password reset requested for unknown email")
		return nil
	}

	resetToken := util.NewTokenID()
	user.Settings.Set("password_reset_token", resetToken)
	if err := s.users.UpdateSettings(ctx, user.ID, user.Settings); err != nil {
		return err
	}

	event := mq.PasswordResetEvent{
		UserPublicID: user.PublicID,
		Email:        user.Email,
		Name:         user.Name,
		ResetToken:   resetToken,
		RequestedAt:  s.now(),
	}
	if err := s.publisher.Publish(mq.RoutingKeyPasswordReset, event); err != nil {
		s.logger.Error("Failed to publish password reset event",
			zap.Error(err),
			zap.String("user", user.PublicID),
		)
		return err
	}

	s.logger.Info("Password reset requested", zap.String("user", user.PublicID))
	return nil
}

// ResetPassword consumes a previously issued reset token and installs the
// new password.
func (s *AccountService) ResetPassword(ctx context.Context, email, resetToken, newPassword string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	stored, _ := user.Settings.Get("password_reset_token").(string)
	if stored == "" || stored != resetToken {
		return ErrInvalidCredentials
	}

	hash, err := util.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	delete(user.Settings, "password_reset_token")
	if err := s.users.UpdateSettings(ctx, user.ID, user.Settings); err != nil {
		return err
	}

	s.logger.Info("Password reset completed", zap.String("user", user.PublicID))
	return nil
}

// ListUsers pages through accounts for the back-office.
func (s *AccountService) ListUsers(ctx context.Context, limit, offset int) ([]model.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.List(ctx, limit, offset)
}

// SearchUsers matches the term against names and emails.
func (s *AccountService) SearchUsers(ctx context.Context, term string) ([]model.User, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []model.User{}, nil
	}
	return s.users.Search(ctx, term, 25)
}

// CountUsers returns the total account count.
func (s *AccountService) CountUsers(ctx context.Context) (int, error) {
	return s.users.Count(ctx)
}

// UserByPublicID resolves an account by its external identifier.
func (s *AccountService) UserByPublicID(ctx context.Context, publicID string) (*model.User, error) {
	user, err := s.users.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// TeamsForUser lists the teams the user belongs to.
func (s *AccountService) TeamsForUser(ctx context.Context, user *model.User) ([]model.Team, error) {
	return s.teams.ListByUser(ctx, user.ID)
}

// SelectTeam makes the given team the user's current one. The user must be
// a member.
func (s *AccountService) SelectTeam(ctx context.Context, user *model.User, teamKey string) (*model.Team, error) {
	team, err := s.teams.FindByKeyForUser(ctx, teamKey, user.ID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrNoTeamSelected
	}

	user.Settings.Set("current_team", team.Key)
	if err := s.users.UpdateSettings(ctx, user.ID, user.Settings); err != nil {
		return nil, err
	}

	s.logger.Info("Team selected",
		zap.String("user", user.PublicID),
		zap.String("team", team.PublicID),
	)
	return team, nil
}

// bootstrapDefaultTeam gives a fresh user their personal team and selects
// it as the current one. The team label follows the "<First>'s Team"
// convention.
func bootstrapDefaultTeam(ctx context.Context, users UserStore, teams TeamStore, user *model.User) error {
	first := user.Name
	if i := strings.IndexByte(first, ' '); i > 0 {
		first = first[:i]
	}
	label := first + "'s Team"

	team := &model.Team{
		PublicID: util.NewPublicID(),
		Key:      util.Slugify(label) + "-" + util.RandomSuffix(6),
		Label:    label,
		Status:   model.TeamActive,
	}
	if err := teams.InsertForUser(ctx, team, user.ID); err != nil {
		return err
	}

	user.Settings.Set("current_team", team.Key)
	return users.UpdateSettings(ctx, user.ID, user.Settings)
}
