package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"storyforge/config"
	"storyforge/internal/model"
	"storyforge/internal/mq"
	"storyforge/internal/session"
	"storyforge/internal/story"
)

type workflowHarness struct {
	svc       *StoryService
	tokens    *fakeTokenStore
	projects  *fakeProjectStore
	teams     *fakeTeamStore
	sessions  *session.MemoryStore
	publisher *fakePublisher

	tokenSvc   *TokenService
	projectSvc *ProjectService
}

func newWorkflowHarness() *workflowHarness {
	tokens := newFakeTokenStore()
	projects := newFakeProjectStore()
	tokens.projectStatus = projects.statusOf

	teams := newFakeTeamStore()
	sessions := session.NewMemoryStore()
	publisher := &fakePublisher{}
	logger := zap.NewNop()

	tokenSvc := NewTokenService(tokens, config.TokenConfig{TTL: 7 * 24 * time.Hour}, logger)
	projectSvc := NewProjectService(projects, newFakeResponseStore(), logger)

	return &workflowHarness{
		svc:        NewStoryService(tokenSvc, projectSvc, teams, sessions, publisher, logger),
		tokens:     tokens,
		projects:   projects,
		teams:      teams,
		sessions:   sessions,
		publisher:  publisher,
		tokenSvc:   tokenSvc,
		projectSvc: projectSvc,
	}
}

// user creates an account with a team selected as current, mirroring the
// registration bootstrap.
func (h *workflowHarness) user(t *testing.T, id int) *model.User {
	t.Helper()
	team := &model.Team{PublicID: "team-pub", Key: "team-key", Label: "Test Team"}
	if err := h.teams.InsertForUser(context.Background(), team, id); err != nil {
		t.Fatalf("InsertForUser: %v", err)
	}
	user := &model.User{ID: id, PublicID: "user-pub", Name: "Test User", Role: story.RoleClient, Settings: model.Settings{}}
	user.Settings.Set("current_team", team.Key)
	return user
}

func (h *workflowHarness) startDraft(t *testing.T, user *model.User) (*model.Project, *model.Token) {
	t.Helper()
	team, err := h.teams.FindByKeyForUser(context.Background(), user.CurrentTeamKey(), user.ID)
	if err != nil || team == nil {
		t.Fatalf("no current team for user %d", user.ID)
	}
	project, err := h.projectSvc.CreateProject(context.Background(), team, "", "")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	token, err := h.tokenSvc.CreateToken(context.Background(), project, user)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	return project, token
}

func wantRedirect(t *testing.T, d Directive, route string) {
	t.Helper()
	if d.Kind != DirectiveRedirect || d.Route != route {
		t.Fatalf("directive = (%s, %s %s), want redirect to %s", d.Kind, d.Route, d.View, route)
	}
}

func wantFlash(t *testing.T, d Directive, level, message string) {
	t.Helper()
	if d.Flash == nil {
		t.Fatalf("directive has no flash, want %q", message)
	}
	if d.Flash.Level != level || d.Flash.Message != message {
		t.Fatalf("flash = (%s, %q), want (%s, %q)", d.Flash.Level, d.Flash.Message, level, message)
	}
}

func TestEntryWithoutStoryGoesToCreate(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)

	d, err := h.svc.Entry(context.Background(), user)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	wantRedirect(t, d, RouteStoryCreate)
}

func TestEntryWithDraftGoesToContinue(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)
	project, _ := h.startDraft(t, user)

	d, err := h.svc.Entry(context.Background(), user)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	wantRedirect(t, d, RouteStoryContinue)
	if d.Params["project"] != project.PublicID {
		t.Errorf("project param = %q, want %q", d.Params["project"], project.PublicID)
	}
}

func TestEntryWithPublishedGoesToComplete(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)
	project, token := h.startDraft(t, user)
	if _, err := h.projects.UpdateStatus(context.Background(), project.ID, story.StatusPublished); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	d, err := h.svc.Entry(context.Background(), user)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	wantRedirect(t, d, RouteStoryComplete)
	if d.Params["token"] != token.PublicID {
		t.Errorf("token param = %q, want %q", d.Params["token"], token.PublicID)
	}
}

func TestEntryRefreshesRevokedDraftToken(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)
	project, token := h.startDraft(t, user)
	if err := h.tokens.Revoke(context.Background(), token.ID, time.Now()); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	d, err := h.svc.Entry(context.Background(), user)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	wantRedirect(t, d, RouteStoryContinue)
	if d.Params["project"] != project.PublicID {
		t.Errorf("project param = %q, want %q", d.Params["project"], project.PublicID)
	}

	fresh, err := h.tokens.FindActive(context.Background(), project.ID, user.ID, h.tokenSvc.filter())
	if err != nil || fresh == nil {
		t.Fatal("expected a fresh unrevoked token after entry")
	}
	if fresh.PublicID == token.PublicID {
		t.Error("entry should have minted a replacement token")
	}
}

func TestNewStoryPageRedirectsWhenDraftExists(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)

	d, err := h.svc.NewStoryPage(context.Background(), user)
	if err != nil {
		t.Fatalf("NewStoryPage: %v", err)
	}
	if d.Kind != DirectiveRender || d.View != ViewNewStory {
		t.Fatalf("directive = (%s, %s), want render %s", d.Kind, d.View, ViewNewStory)
	}

	h.startDraft(t, user)
	d, err = h.svc.NewStoryPage(context.Background(), user)
	if err != nil {
		t.Fatalf("NewStoryPage: %v", err)
	}
	wantRedirect(t, d, RouteStoryContinue)
}

func TestCreateStoryEntersWizardAtIntro(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)

	d, err := h.svc.CreateStory(context.Background(), user, "My Story", "desc")
	if err != nil {
		t.Fatalf("CreateStory: %v", err)
	}
	wantRedirect(t, d, RouteStoryForm)
	if d.Params["step"] != "intro" {
		t.Errorf("step param = %q, want intro", d.Params["step"])
	}
	if d.Params["token"] == "" || d.Params["project"] == "" {
		t.Error("expected project and token params")
	}
}

func TestCreateStoryWithoutTeam(t *testing.T) {
	h := newWorkflowHarness()
	user := &model.User{ID: 1, Role: story.RoleClient, Settings: model.Settings{}}

	d, err := h.svc.CreateStory(context.Background(), user, "", "")
	if err != nil {
		t.Fatalf("CreateStory: %v", err)
	}
	wantRedirect(t, d, RouteStoryCreate)
	wantFlash(t, d, session.LevelError, "No team selected.")
}

func TestContinueStoryDefaultsToIntro(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)
	project, _ := h.startDraft(t, user)

	d, err := h.svc.ContinueStory(context.Background(), "sess-1", user, project.PublicID)
	if err != nil {
		t.Fatalf("ContinueStory: %v", err)
	}
	if d.Kind != DirectiveRender || d.View != ViewContinueStory {
		t.Fatalf("directive = (%s, %s), want render %s", d.Kind, d.View, ViewContinueStory)
	}
	pos, ok := d.Props["position"].(model.LastPosition)
	if !ok || pos.Step != "intro" || pos.Page != 1 {
		t.Errorf("position = (%+v, %v), want intro page 1", pos, ok)
	}
}

func TestContinueStoryResumesSavedPosition(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)
	project, token := h.startDraft(t, user)
	if err := h.tokenSvc.SaveLastPosition(context.Background(), h.sessions, "sess-1", token, "section-b", 2); err != nil {
		t.Fatalf("SaveLastPosition: %v", err)
	}

	d, err := h.svc.ContinueStory(context.Background(), "sess-1", user, project.PublicID)
	if err != nil {
		t.Fatalf("ContinueStory: %v", err)
	}
	pos, _ := d.Props["position"].(model.LastPosition)
	if pos.Step != "section-b" || pos.Page != 2 {
		t.Errorf("position = %+v, want section-b page 2", pos)
	}
}

func TestContinueStoryResetsUnknownStep(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)
	project, token := h.startDraft(t, user)
	token.Settings.SetLastPosition("no-such-step", 9)
	if err := h.tokens.UpdateSettings(context.Background(), token.ID, token.Settings); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	d, err := h.svc.ContinueStory(context.Background(), "sess-1", user, project.PublicID)
	if err != nil {
		t.Fatalf("ContinueStory: %v", err)
	}
	pos, _ := d.Props["position"].(model.LastPosition)
	if pos.Step != "intro" || pos.Page != 1 {
		t.Errorf("position = %+v, want reset to intro page 1", pos)
	}

	stored, _ := h.tokens.FindByPublicID(context.Background(), token.PublicID)
	storedPos, ok := stored.Settings.LastPosition()
	if !ok || storedPos.Step != "intro" || storedPos.Page != 1 {
		t.Errorf("stored position = (%+v, %v), want reset persisted", storedPos, ok)
	}
}

func TestContinueStoryUnknownProject(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)

	d, err := h.svc.ContinueStory(context.Background(), "sess-1", user, "nope")
	if err != nil {
		t.Fatalf("ContinueStory: %v", err)
	}
	wantRedirect(t, d, RouteStoryCreate)
	wantFlash(t, d, session.LevelError, "Sorry, you do not have access to this form.")
}

func TestLoadFormRequiresToken(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)
	project, _ := h.startDraft(t, user)

	d, err := h.svc.LoadForm(context.Background(), user, project.PublicID, "intro", "", 1, "")
	if err != nil {
		t.Fatalf("LoadForm: %v", err)
	}
	wantRedirect(t, d, RouteStoryCreate)
	wantFlash(t, d, session.LevelError, "Token is required.")
}

func TestLoadFormRejectsForeignToken(t *testing.T) {
	h := newWorkflowHarness()
	owner := h.user(t, 1)
	project, token := h.startDraft(t, owner)

	intruder := &model.User{ID: 99, Role: story.RoleClient, Settings: model.Settings{}}
	d, err := h.svc.LoadForm(context.Background(), intruder, project.PublicID, "intro", token.PublicID, 1, "")
	if err != nil {
		t.Fatalf("LoadForm: %v", err)
	}
	wantRedirect(t, d, RouteStoryCreate)
	wantFlash(t, d, session.LevelError, "User token is invalid.")
}

func TestLoadFormRejectsUnknownStep(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)
	project, token := h.startDraft(t, user)

	d, err := h.svc.LoadForm(context.Background(), user, project.PublicID, "bogus", token.PublicID, 1, "")
	if err != nil {
		t.Fatalf("LoadForm: %v", err)
	}
	wantFlash(t, d, session.LevelError, "No data found for this step.")

	// The terminal step owns no fields so it cannot be loaded as a form.
	d, err = h.svc.LoadForm(context.Background(), user, project.PublicID, "complete", token.PublicID, 1, "")
	if err != nil {
		t.Fatalf("LoadForm: %v", err)
	}
	wantFlash(t, d, session.LevelError, "No data found for this step.")
}

func TestLoadFormRendersSavedAnswers(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)
	project, token := h.startDraft(t, user)
	if err := h.projectSvc.SaveResponses(context.Background(), project,
		[]story.Step{story.StepIntro}, map[string]any{"intro_1": "hello"}); err != nil {
		t.Fatalf("SaveResponses: %v", err)
	}

	d, err := h.svc.LoadForm(context.Background(), user, project.PublicID, "intro", token.PublicID, 0, "")
	if err != nil {
		t.Fatalf("LoadForm: %v", err)
	}
	if d.Kind != DirectiveRender || d.View != ViewStoryForm {
		t.Fatalf("directive = (%s, %s), want render %s", d.Kind, d.View, ViewStoryForm)
	}
	if d.Props["page"] != 1 {
		t.Errorf("page = %v, want clamp to 1", d.Props["page"])
	}
	group, ok := d.Props["story"].(map[string]any)
	if !ok || group["intro_1"] != "hello" {
		t.Errorf("story group = %v, want intro_1 hello", d.Props["story"])
	}
}

func TestSaveFormPersistsAndAdvances(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)
	project, token := h.startDraft(t, user)

	result, err := h.svc.SaveForm(context.Background(), "sess-1", user, SaveFormInput{
		ProjectID: project.PublicID,
		StepID:    "intro",
		Token:     token.PublicID,
		Page:      2,
		Values:    map[string]any{"intro_1": "hello"},
	})
	if err != nil {
		t.Fatalf("SaveForm: %v", err)
	}
	if !result.Success || result.Message != "Your responses have been saved." {
		t.Errorf("result = %+v, want success acknowledgment", result)
	}

	stored, _ := h.tokens.FindByPublicID(context.Background(), token.PublicID)
	pos, ok := stored.Settings.LastPosition()
	if !ok || pos.Step != "intro" || pos.Page != 2 {
		t.Errorf("stored position = (%+v, %v), want intro page 2", pos, ok)
	}

	out, err := h.projectSvc.ResponsesArray(context.Background(), project, []story.Step{story.StepIntro}, false)
	if err != nil {
		t.Fatalf("ResponsesArray: %v", err)
	}
	if out["intro_1"] != "hello" {
		t.Errorf("intro_1 = %v, want hello", out["intro_1"])
	}
}

func TestSaveFormGuestSkipsPersistence(t *testing.T) {
	h := newWorkflowHarness()
	owner := h.user(t, 1)
	project, token := h.startDraft(t, owner)

	guest := &model.User{ID: 50, Role: story.RoleGuest, Settings: model.Settings{}}
	result, err := h.svc.SaveForm(context.Background(), "sess-guest", guest, SaveFormInput{
		ProjectID: project.PublicID,
		StepID:    "intro",
		Token:     token.PublicID,
		Page:      1,
		Values:    map[string]any{"intro_1": "guest scribble"},
	})
	if err != nil {
		t.Fatalf("SaveForm: %v", err)
	}
	if !result.Success {
		t.Error("guest save must still report success")
	}

	out, err := h.projectSvc.ResponsesArray(context.Background(), project, []story.Step{story.StepIntro}, false)
	if err != nil {
		t.Fatalf("ResponsesArray: %v", err)
	}
	if out["intro_1"] != nil {
		t.Errorf("intro_1 = %v, want nothing persisted for a guest", out["intro_1"])
	}

	stored, _ := h.tokens.FindByPublicID(context.Background(), token.PublicID)
	if _, ok := stored.Settings.LastPosition(); ok {
		t.Error("guest save must not move the stored position")
	}
}

func TestSaveFormFlagsMissingIdentifiers(t *testing.T) {
	h := newWorkflowHarness()
	guest := &model.User{ID: 50, Role: story.RoleGuest, Settings: model.Settings{}}

	result, err := h.svc.SaveForm(context.Background(), "sess-1", guest, SaveFormInput{})
	if err != nil {
		t.Fatalf("SaveForm: %v", err)
	}
	if !result.Success {
		t.Error("missing identifiers still acknowledge success")
	}

	flashes, _ := h.sessions.PopFlashes(context.Background(), "sess-1")
	if len(flashes) != 2 {
		t.Fatalf("got %d flashes, want the error then the success", len(flashes))
	}
	if flashes[0].Message != "Invalid form ID or token." {
		t.Errorf("first flash = %q, want the invalid-id warning", flashes[0].Message)
	}
	if flashes[1].Message != "Your responses have been saved." {
		t.Errorf("second flash = %q, want the save confirmation", flashes[1].Message)
	}
}

func TestPublishStoryHappyPath(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)
	project, token := h.startDraft(t, user)

	d, err := h.svc.PublishStory(context.Background(), "sess-1", user, project.PublicID, token.PublicID)
	if err != nil {
		t.Fatalf("PublishStory: %v", err)
	}
	wantRedirect(t, d, RouteStoryComplete)
	wantFlash(t, d, session.LevelSuccess, "Your form has been submitted.")

	if h.projects.statusOf(project.ID) != story.StatusPublished {
		t.Error("project should be published")
	}

	stored, _ := h.tokens.FindByPublicID(context.Background(), token.PublicID)
	pos, ok := stored.Settings.LastPosition()
	if !ok || pos.Step != "complete" || pos.Page != 0 {
		t.Errorf("stored position = (%+v, %v), want complete page 0", pos, ok)
	}

	if len(h.publisher.published) != 1 {
		t.Fatalf("published %d events, want 1", len(h.publisher.published))
	}
	if h.publisher.published[0].RoutingKey != mq.RoutingKeyStoryPublished {
		t.Errorf("routing key = %q, want %q", h.publisher.published[0].RoutingKey, mq.RoutingKeyStoryPublished)
	}
}

func TestPublishStoryIdempotent(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)
	project, token := h.startDraft(t, user)

	if _, err := h.svc.PublishStory(context.Background(), "sess-1", user, project.PublicID, token.PublicID); err != nil {
		t.Fatalf("first publish: %v", err)
	}

	d, err := h.svc.PublishStory(context.Background(), "sess-1", user, project.PublicID, token.PublicID)
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	wantRedirect(t, d, RouteStoryComplete)
	wantFlash(t, d, session.LevelInfo, "This project has already been submitted.")

	if len(h.publisher.published) != 1 {
		t.Errorf("published %d events, want only the first", len(h.publisher.published))
	}
}

func TestPublishStoryRejectsInvalidToken(t *testing.T) {
	h := newWorkflowHarness()
	owner := h.user(t, 1)
	project, _ := h.startDraft(t, owner)

	intruder := &model.User{ID: 99, Role: story.RoleClient, Settings: model.Settings{}}
	d, err := h.svc.PublishStory(context.Background(), "sess-1", intruder, project.PublicID, "whatever")
	if err != nil {
		t.Fatalf("PublishStory: %v", err)
	}
	wantRedirect(t, d, RouteStoryCreate)
	wantFlash(t, d, session.LevelError, "User token is invalid.")
}

func TestCompleteStoryRequiresPublishedProject(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)
	project, token := h.startDraft(t, user)

	d, err := h.svc.CompleteStory(context.Background(), user, project.PublicID, token.PublicID)
	if err != nil {
		t.Fatalf("CompleteStory: %v", err)
	}
	wantRedirect(t, d, RouteStory)
	wantFlash(t, d, session.LevelError, "Project is not complete.")

	if _, err := h.svc.PublishStory(context.Background(), "sess-1", user, project.PublicID, token.PublicID); err != nil {
		t.Fatalf("PublishStory: %v", err)
	}

	d, err = h.svc.CompleteStory(context.Background(), user, project.PublicID, token.PublicID)
	if err != nil {
		t.Fatalf("CompleteStory: %v", err)
	}
	if d.Kind != DirectiveRender || d.View != ViewCompleteStory {
		t.Fatalf("directive = (%s, %s), want render %s", d.Kind, d.View, ViewCompleteStory)
	}
}

func TestCompleteStoryAcceptsRevokedToken(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)
	project, token := h.startDraft(t, user)
	if _, err := h.svc.PublishStory(context.Background(), "sess-1", user, project.PublicID, token.PublicID); err != nil {
		t.Fatalf("PublishStory: %v", err)
	}
	if err := h.tokens.Revoke(context.Background(), token.ID, time.Now()); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	d, err := h.svc.CompleteStory(context.Background(), user, project.PublicID, token.PublicID)
	if err != nil {
		t.Fatalf("CompleteStory: %v", err)
	}
	if d.Kind != DirectiveRender || d.View != ViewCompleteStory {
		t.Fatalf("directive = (%s, %s), want the completion view despite revocation", d.Kind, d.View)
	}
}

func TestDashboardListsTeamProjects(t *testing.T) {
	h := newWorkflowHarness()
	user := h.user(t, 1)
	h.startDraft(t, user)
	h.startDraft(t, user)

	d, err := h.svc.Dashboard(context.Background(), user)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.Kind != DirectiveRender || d.View != ViewDashboard {
		t.Fatalf("directive = (%s, %s), want render %s", d.Kind, d.View, ViewDashboard)
	}
	items, ok := d.Props["projects"].([]map[string]any)
	if !ok || len(items) != 2 {
		t.Fatalf("projects = %v, want 2 entries", d.Props["projects"])
	}
}
