package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"storyforge/config"
	"storyforge/internal/story"
	"storyforge/internal/util"
)

func newAuthHarness() (*AuthService, *fakeUserStore, *fakeTeamStore) {
	users := newFakeUserStore()
	teams := newFakeTeamStore()
	svc := NewAuthService(users, teams, config.JWTConfig{Secret: "test-secret"}, zap.NewNop())
	return svc, users, teams
}

func TestRegisterBootstrapsDefaultTeam(t *testing.T) {
	svc, users, teams := newAuthHarness()

	user, err := svc.Register(context.Background(), "Jane Doe", "jane@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != story.RoleClient {
		t.Errorf("Role = %v, want client", user.Role)
	}

	owned, err := teams.ListByUser(context.Background(), user.ID)
	if err != nil || len(owned) != 1 {
		t.Fatalf("teams = (%v, %v), want exactly one", owned, err)
	}
	if owned[0].Label != "Jane's Team" {
		t.Errorf("team label = %q, want %q", owned[0].Label, "Jane's Team")
	}

	stored, _ := users.FindByEmail(context.Background(), "jane@example.com")
	if stored.CurrentTeamKey() != owned[0].Key {
		t.Errorf("current team = %q, want %q", stored.CurrentTeamKey(), owned[0].Key)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newAuthHarness()

	if _, err := svc.Register(context.Background(), "Jane Doe", "jane@example.com", "pw"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(context.Background(), "Other Jane", "jane@example.com", "pw"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestLoginIssuesJWT(t *testing.T) {
	svc, _, _ := newAuthHarness()
	if _, err := svc.Register(context.Background(), "Jane Doe", "jane@example.com", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tokenString, user, err := svc.Login(context.Background(), "jane@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	userID, role, err := util.ParseJWT(tokenString, "test-secret")
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if userID != user.ID || role != string(story.RoleClient) {
		t.Errorf("claims = (%d, %s), want (%d, client)", userID, role, user.ID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newAuthHarness()
	if _, err := svc.Register(context.Background(), "Jane Doe", "jane@example.com", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "jane@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v, want ErrInvalidCredentials", err)
	}
}

func TestUserFromToken(t *testing.T) {
	svc, _, _ := newAuthHarness()
	registered, err := svc.Register(context.Background(), "Jane Doe", "jane@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	tokenString, _, err := svc.Login(context.Background(), "jane@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	user, err := svc.UserFromToken(context.Background(), tokenString)
	if err != nil {
		t.Fatalf("UserFromToken: %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("user id = %d, want %d", user.ID, registered.ID)
	}

	if _, err := svc.UserFromToken(context.Background(), "garbage"); err == nil {
		t.Error("garbage token must not resolve a user")
	}
}

func TestRegisterSingleNameUser(t *testing.T) {
	svc, _, teams := newAuthHarness()

	user, err := svc.Register(context.Background(), "Cher", "cher@example.com", "pw")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	owned, _ := teams.ListByUser(context.Background(), user.ID)
	if len(owned) != 1 || !strings.HasPrefix(owned[0].Label, "Cher") {
		t.Fatalf("teams = %v, want one team named after the user", owned)
	}
}
