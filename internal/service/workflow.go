package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storyforge/internal/metrics"
	"storyforge/internal/model"
	"storyforge/internal/mq"
	"storyforge/internal/session"
	"storyforge/internal/story"
)

// Directive kinds returned by the workflow.
const (
	DirectiveRender   = "render"
	DirectiveRedirect = "redirect"
)

// Route names the boundary maps to concrete URLs.
const (
	RouteStory         = "story"
	RouteStoryCreate   = "story.create"
	RouteStoryContinue = "story.continue"
	RouteStoryForm     = "story.form"
	RouteStoryComplete = "story.complete"
)

// View names handed to the rendering layer.
const (
	ViewNewStory      = "Story/NewStory"
	ViewContinueStory = "Story/ContinueStory"
	ViewStoryForm     = "Story/StoryForm"
	ViewCompleteStory = "Story/CompleteStory"
	ViewDashboard     = "Story/Dashboard"
)

// Directive tells the HTTP boundary what to do next: render a view with
// props, or redirect to a named route, optionally flashing a message.
type Directive struct {
	Kind   string
	View   string
	Route  string
	Params map[string]string
	Flash  *session.Flash
	Props  map[string]any
}

func render(view string, props map[string]any) Directive {
	return Directive{Kind: DirectiveRender, View: view, Props: props}
}

func redirect(route string, params map[string]string) Directive {
	return Directive{Kind: DirectiveRedirect, Route: route, Params: params}
}

func redirectWithFlash(route string, params map[string]string, level, message string) Directive {
	d := redirect(route, params)
	d.Flash = &session.Flash{Level: level, Message: message}
	return d
}

// SaveFormInput is the submitted payload for one page of a step.
type SaveFormInput struct {
	ProjectID string
	StepID    string
	Token     string
	Page      int
	Values    map[string]any
}

// SaveFormResult is the acknowledgment contract for the save endpoint.
type SaveFormResult struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// StoryService orchestrates the wizard: it composes the token and project
// services to decide what the user should see next.
type StoryService struct {
	tokens    *TokenService
	projects  *ProjectService
	teams     TeamStore
	sessions  session.Store
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewStoryService(
	tokens *TokenService,
	projects *ProjectService,
	teams TeamStore,
	sessions session.Store,
	publisher Publisher,
	logger *zap.Logger,
) *StoryService {
	return &StoryService{
		tokens:    tokens,
		projects:  projects,
		teams:     teams,
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Entry decides where the story index lands: Complete for a published
// story, Continue for a draft (refreshing a stale token first), or the
// creation page when the user has no story yet.
func (s *StoryService) Entry(ctx context.Context, user *model.User) (Directive, error) {
	published, err := s.tokens.GetTokenByProjectStatus(ctx, story.StatusPublished, nil, user,
		WithBypassExpiration(), WithBypassRevocation())
	if err != nil {
		return Directive{}, err
	}
	if published != nil {
		project, err := s.projects.ProjectByID(ctx, published.ProjectID)
		if err != nil {
			return Directive{}, err
		}
		return redirect(RouteStoryComplete, map[string]string{
			"project": project.PublicID,
			"token":   published.PublicID,
		}), nil
	}

	draft, err := s.tokens.GetTokenByProjectStatus(ctx, story.StatusDraft, nil, user,
		WithBypassExpiration(), WithBypassRevocation())
	if err != nil {
		return Directive{}, err
	}
	if draft == nil {
		return redirect(RouteStoryCreate, nil), nil
	}

	if s.tokens.IsExpired(draft) || s.tokens.IsRevoked(draft) {
		if draft, err = s.tokens.RefreshToken(ctx, draft); err != nil {
			return Directive{}, err
		}
	}

	project, err := s.projects.ProjectByID(ctx, draft.ProjectID)
	if err != nil {
		return Directive{}, err
	}
	return redirect(RouteStoryContinue, map[string]string{
		"project": project.PublicID,
	}), nil
}

// NewStoryPage shows the creation page, unless a draft already exists, in
// which case the user is sent back to it.
func (s *StoryService) NewStoryPage(ctx context.Context, user *model.User) (Directive, error) {
	draft, err := s.tokens.GetTokenByProjectStatus(ctx, story.StatusDraft, nil, user,
		WithBypassExpiration(), WithBypassRevocation())
	if err != nil {
		return Directive{}, err
	}
	if draft != nil {
		project, err := s.projects.ProjectByID(ctx, draft.ProjectID)
		if err != nil {
			return Directive{}, err
		}
		return redirect(RouteStoryContinue, map[string]string{
			"project": project.PublicID,
			"token":   draft.PublicID,
		}), nil
	}
	return render(ViewNewStory, nil), nil
}

// CreateStory starts a fresh draft for the user's current team and enters
// the wizard at intro page 1.
func (s *StoryService) CreateStory(ctx context.Context, user *model.User, name, description string) (Directive, error) {
	team, err := s.currentTeam(ctx, user)
	if err != nil {
		return Directive{}, err
	}
	if team == nil {
		return redirectWithFlash(RouteStoryCreate, nil,
			session.LevelError, "No team selected."), nil
	}

	project, err := s.projects.CreateProject(ctx, team, name, description)
	if err != nil {
		return Directive{}, err
	}

	token, err := s.tokens.CreateToken(ctx, project, user)
	if err != nil {
		return Directive{}, err
	}

	return redirect(RouteStoryForm, map[string]string{
		"project": project.PublicID,
		"step":    string(story.StepIntro),
		"token":   token.PublicID,
	}), nil
}

// ContinueStory resumes a draft at the token's saved position, defaulting
// to intro page 1. An unrecognized stored step falls back to intro and the
// stored position is reset.
func (s *StoryService) ContinueStory(ctx context.Context, sessionID string, user *model.User, projectPublicID string) (Directive, error) {
	project, err := s.projects.ResolveProject(ctx, projectPublicID)
	if err != nil {
		return Directive{}, err
	}
	if project == nil {
		return redirectWithFlash(RouteStoryCreate, nil,
			session.LevelError, "Sorry, you do not have access to this form."), nil
	}

	published, err := s.tokens.GetTokenByProjectStatus(ctx, story.StatusPublished, project, user,
		WithBypassExpiration(), WithBypassRevocation())
	if err != nil {
		return Directive{}, err
	}
	if published != nil {
		return redirect(RouteStoryComplete, map[string]string{
			"project": project.PublicID,
			"token":   published.PublicID,
		}), nil
	}

	token, err := s.tokens.GetToken(ctx, project, user)
	if err != nil {
		return Directive{}, err
	}
	if token == nil {
		return redirectWithFlash(RouteStoryCreate, nil,
			session.LevelError, "Sorry, you do not have access to this form."), nil
	}

	position, ok := token.Settings.LastPosition()
	if !ok {
		position = model.LastPosition{Step: string(story.StepIntro), Page: 1}
	}

	step, known := story.StepFromSlug(position.Step)
	if !known {
		// A stale or hand-edited blob must not break the resume flow.
		s.logger.Warn("Unknown step in saved position, resetting to intro",
			zap.String("step", position.Step),
			zap.String("token", token.PublicID),
		)
		step = story.StepIntro
		position = model.LastPosition{Step: string(story.StepIntro), Page: 1}
		if err := s.tokens.SaveLastPosition(ctx, s.sessions, sessionID, token, position.Step, position.Page); err != nil {
			return Directive{}, err
		}
	}

	return render(ViewContinueStory, map[string]any{
		"project":  s.projectResource(ctx, project, user),
		"step":     stepResource(step),
		"token":    token.PublicID,
		"position": position,
	}), nil
}

// LoadForm renders one step's form with the previously saved answers.
func (s *StoryService) LoadForm(ctx context.Context, user *model.User, projectPublicID, stepSlug, tokenID string, page int, direction string) (Directive, error) {
	if tokenID == "" {
		return redirectWithFlash(RouteStoryCreate, nil,
			session.LevelError, "Token is required."), nil
	}

	project, err := s.projects.ResolveProject(ctx, projectPublicID)
	if err != nil {
		return Directive{}, err
	}

	valid := false
	if project != nil {
		if valid, err = s.tokens.VerifyTokenID(ctx, tokenID, project, user); err != nil {
			return Directive{}, err
		}
	}
	if !valid {
		return redirectWithFlash(RouteStoryCreate, nil,
			session.LevelError, "User token is invalid."), nil
	}

	step, known := story.StepFromSlug(stepSlug)
	if !known {
		return redirectWithFlash(RouteStoryCreate, nil,
			session.LevelError, "No data found for this step."), nil
	}

	responses, err := s.projects.ResponsesArray(ctx, project, []story.Step{step}, true)
	if err != nil {
		return Directive{}, err
	}

	group, ok := responses[string(step)].(map[string]any)
	if !ok {
		// Only field-less steps produce no group; loading them as a
		// form page is a reproducible precondition failure.
		return redirectWithFlash(RouteStoryCreate, nil,
			session.LevelError, "No data found for this step."), nil
	}

	if page < 1 {
		page = 1
	}
	if direction == "" {
		direction = "next"
	}

	return render(ViewStoryForm, map[string]any{
		"project":   s.projectResource(ctx, project, user),
		"step":      stepResource(step),
		"token":     tokenID,
		"page":      page,
		"direction": direction,
		"story":     group,
	}), nil
}

// SaveForm persists one page of answers and advances the saved position.
// Guests get a success acknowledgment without any persistence: preview
// mode must feel identical to the real thing.
func (s *StoryService) SaveForm(ctx context.Context, sessionID string, user *model.User, input SaveFormInput) (SaveFormResult, error) {
	if input.ProjectID == "" || input.StepID == "" || input.Token == "" {
		// Historical looseness: the submission is flagged but not
		// rejected.
		if err := s.sessions.PushFlash(ctx, sessionID, session.Flash{
			Level: session.LevelError, Message: "Invalid form ID or token.",
		}); err != nil {
			s.logger.Warn("Failed to flash message", zap.Error(err))
		}
	}

	if !user.IsGuest() {
		project, err := s.projects.ResolveProject(ctx, input.ProjectID)
		if err != nil {
			return SaveFormResult{}, err
		}

		step, known := story.StepFromSlug(input.StepID)
		steps := []story.Step{}
		if known {
			steps = append(steps, step)
		}

		if err := s.projects.SaveResponses(ctx, project, steps, input.Values); err != nil {
			return SaveFormResult{}, err
		}

		token, err := s.tokens.ResolveToken(ctx, input.Token)
		if err != nil {
			return SaveFormResult{}, err
		}
		if err := s.tokens.SaveLastPosition(ctx, s.sessions, sessionID, token, input.StepID, input.Page); err != nil {
			return SaveFormResult{}, err
		}
	}

	if err := s.sessions.PushFlash(ctx, sessionID, session.Flash{
		Level: session.LevelSuccess, Message: "Your responses have been saved.",
	}); err != nil {
		s.logger.Warn("Failed to flash message", zap.Error(err))
	}

	return SaveFormResult{Message: "Your responses have been saved.", Success: true}, nil
}

// PublishStory locks the project. Publishing an already published project
// is an informational no-op that lands on the completion page.
func (s *StoryService) PublishStory(ctx context.Context, sessionID string, user *model.User, projectPublicID, tokenID string) (Directive, error) {
	project, err := s.projects.ResolveProject(ctx, projectPublicID)
	if err != nil {
		return Directive{}, err
	}
	if project == nil {
		return redirectWithFlash(RouteStoryCreate, nil,
			session.LevelError, "User token is invalid."), nil
	}

	valid, err := s.tokens.VerifyToken(ctx, project, user)
	if err != nil {
		return Directive{}, err
	}
	if !valid {
		return redirectWithFlash(RouteStoryCreate, nil,
			session.LevelError, "User token is invalid."), nil
	}

	complete, err := s.projects.IsProjectComplete(project)
	if err != nil {
		return Directive{}, err
	}
	if complete {
		return redirectWithFlash(RouteStoryComplete, map[string]string{
			"project": project.PublicID,
			"token":   tokenID,
		}, session.LevelInfo, "This project has already been submitted."), nil
	}

	published, err := s.projects.PublishProject(ctx, project)
	if err != nil {
		return Directive{}, err
	}
	if !published {
		return redirectWithFlash(RouteStoryCreate, nil,
			session.LevelError, "Unable to complete project."), nil
	}

	token, err := s.tokens.ResolveToken(ctx, tokenID)
	if err != nil {
		return Directive{}, err
	}
	if err := s.tokens.SaveLastPosition(ctx, s.sessions, sessionID, token, string(story.StepComplete), 0); err != nil {
		return Directive{}, err
	}

	metrics.IncrementStoriesPublished()
	s.notifyPublished(project, user)

	return redirectWithFlash(RouteStoryComplete, map[string]string{
		"project": project.PublicID,
		"token":   tokenID,
	}, session.LevelSuccess, "Your form has been submitted."), nil
}

// CompleteStory shows the final page; the project must actually be
// published to land here.
func (s *StoryService) CompleteStory(ctx context.Context, user *model.User, projectPublicID, tokenID string) (Directive, error) {
	if tokenID == "" {
		return redirectWithFlash(RouteStoryCreate, nil,
			session.LevelError, "Token is required."), nil
	}

	project, err := s.projects.ResolveProject(ctx, projectPublicID)
	if err != nil {
		return Directive{}, err
	}

	valid := false
	if project != nil {
		if valid, err = s.tokens.VerifyTokenID(ctx, tokenID, project, user,
			WithBypassExpiration(), WithBypassRevocation()); err != nil {
			return Directive{}, err
		}
	}
	if !valid {
		return redirectWithFlash(RouteStoryCreate, nil,
			session.LevelError, "User token is invalid."), nil
	}

	complete, err := s.projects.IsProjectComplete(project)
	if err != nil {
		return Directive{}, err
	}
	if !complete {
		return redirectWithFlash(RouteStory, nil,
			session.LevelError, "Project is not complete."), nil
	}

	return render(ViewCompleteStory, map[string]any{
		"project":  s.projectResource(ctx, project, user),
		"step":     stepResource(story.StepComplete),
		"token":    tokenID,
		"allSteps": story.AllSteps(),
	}), nil
}

// Dashboard lists the current team's projects with status labels.
func (s *StoryService) Dashboard(ctx context.Context, user *model.User) (Directive, error) {
	team, err := s.currentTeam(ctx, user)
	if err != nil {
		return Directive{}, err
	}
	if team == nil {
		return redirectWithFlash(RouteStoryCreate, nil,
			session.LevelError, "No team selected."), nil
	}

	projects, err := s.projects.ProjectsByTeam(ctx, team)
	if err != nil {
		return Directive{}, err
	}

	items := make([]map[string]any, 0, len(projects))
	for i := range projects {
		items = append(items, s.projectResource(ctx, &projects[i], user))
	}

	return render(ViewDashboard, map[string]any{
		"team":     map[string]any{"id": team.PublicID, "slug": team.Slug(), "name": team.Label},
		"projects": items,
	}), nil
}

func (s *StoryService) currentTeam(ctx context.Context, user *model.User) (*model.Team, error) {
	key := user.CurrentTeamKey()
	if key == "" {
		return nil, nil
	}
	return s.teams.FindByKeyForUser(ctx, key, user.ID)
}

func (s *StoryService) notifyPublished(project *model.Project, user *model.User) {
	if s.publisher == nil {
		return
	}
	event := mq.StoryPublishedEvent{
		ProjectPublicID: project.PublicID,
		ProjectLabel:    project.Label,
		UserEmail:       user.Email,
		UserName:        user.Name,
		PublishedAt:     s.now(),
	}
	if err := s.publisher.Publish(mq.RoutingKeyStoryPublished, event); err != nil {
		// Notification delivery is best effort; the publish itself
		// already succeeded.
		s.logger.Error("Failed to publish story.published event",
			zap.Error(err),
			zap.String("project", project.PublicID),
		)
	}
}

// projectResource is the render payload for a project, including the
// requesting user's active token when one exists.
func (s *StoryService) projectResource(ctx context.Context, project *model.Project, user *model.User) map[string]any {
	resource := map[string]any{
		"id":          project.PublicID,
		"slug":        project.Slug(),
		"name":        project.Label,
		"description": project.Description,
		"status":      project.Status.Label(),
	}
	if token, err := s.tokens.GetToken(ctx, project, user); err == nil && token != nil {
		resource["token"] = token.PublicID
	}
	return resource
}

func stepResource(step story.Step) map[string]any {
	return map[string]any{
		"id":   string(step),
		"slug": string(step),
		"name": step.Label(),
	}
}
