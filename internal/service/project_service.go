package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"storyforge/internal/metrics"
	"storyforge/internal/model"
	"storyforge/internal/story"
	"storyforge/internal/util"
)

// ProjectService owns project creation, the publish transition and the
// response store / resume engine.
type ProjectService struct {
	projects  ProjectStore
	responses ResponseStore
	logger    *zap.Logger
	now       func() time.Time
}

func NewProjectService(projects ProjectStore, responses ResponseStore, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		projects:  projects,
		responses: responses,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateProject creates a DRAFT project owned by the team. Empty name and
// description get auto-generated values.
func (s *ProjectService) CreateProject(ctx context.Context, team *model.Team, name, description string) (*model.Project, error) {
	if team == nil {
		return nil, ErrNoTeamSelected
	}

	if name == "" {
		name = "My Project - " + s.now().Format("2006-01-02 15:04:05")
		description = "This is a form submission for " + team.Label + "."
	}

	project := &model.Project{
		PublicID:    util.NewPublicID(),
		Key:         util.Slugify(name) + "-" + util.RandomSuffix(6),
		Label:       name,
		Description: description,
	}

	if err := s.projects.InsertForTeam(ctx, project, team.ID); err != nil {
		s.logger.Error("Failed to create project",
			zap.Error(err),
			zap.String("team", team.PublicID),
		)
		return nil, err
	}

	s.logger.Info("Project created successfully",
		zap.String("project", project.PublicID),
		zap.String("team", team.PublicID),
	)
	return project, nil
}

// ResolveProject looks a project up by public identifier. Missing projects
// yield (nil, nil); callers must check before use.
func (s *ProjectService) ResolveProject(ctx context.Context, publicID string) (*model.Project, error) {
	project, err := s.projects.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		s.logger.Warn("Project not found", zap.String("public_id", publicID))
	}
	return project, nil
}

// ProjectByID fetches a project by its internal row id.
func (s *ProjectService) ProjectByID(ctx context.Context, id int) (*model.Project, error) {
	return s.projects.FindByID(ctx, id)
}

// SaveResponses upserts one row per submitted field that belongs to any of
// the given steps. Fields outside the configured steps are silently
// ignored.
func (s *ProjectService) SaveResponses(ctx context.Context, project *model.Project, steps []story.Step, values map[string]any) error {
	if project == nil {
		return ErrNoProjectSet
	}

	saved := map[string]int{}
	for key, value := range values {
		for _, step := range steps {
			if !step.HasField(key) {
				continue
			}
			if err := s.responses.Upsert(ctx, project.ID, string(step), key, valueToString(value)); err != nil {
				s.logger.Error("Failed to save project responses",
					zap.Error(err),
					zap.String("project", project.PublicID),
				)
				return err
			}
			saved[string(step)]++
			break
		}
	}

	for step, count := range saved {
		metrics.IncrementResponsesSaved(step, count)
	}

	s.logger.Info("Project responses saved",
		zap.String("project", project.PublicID),
		zap.Int("response_count", len(values)),
	)
	return nil
}

// ResponsesArray assembles the saved answers for the given steps, with
// read-time type casting applied. Flat form maps field -> value; grouped
// form maps step -> field -> value. Every field a step defines appears in
// the output, unanswered ones as nil, so a step with no fields produces no
// group at all.
func (s *ProjectService) ResponsesArray(ctx context.Context, project *model.Project, steps []story.Step, grouped bool) (map[string]any, error) {
	if project == nil {
		return nil, ErrNoProjectSet
	}

	stepSlugs := make([]string, len(steps))
	for i, step := range steps {
		stepSlugs[i] = string(step)
	}

	responses, err := s.responses.ListByProjectSteps(ctx, project.ID, stepSlugs)
	if err != nil {
		return nil, err
	}

	byStepKey := map[string]map[string]string{}
	for _, resp := range responses {
		if byStepKey[resp.Step] == nil {
			byStepKey[resp.Step] = map[string]string{}
		}
		byStepKey[resp.Step][resp.Key] = resp.Value
	}

	out := map[string]any{}
	for _, step := range steps {
		for _, field := range step.Fields() {
			var value any
			if raw, ok := byStepKey[string(step)][field]; ok {
				value = CastValue(raw)
			}
			if grouped {
				group, ok := out[string(step)].(map[string]any)
				if !ok {
					group = map[string]any{}
					out[string(step)] = group
				}
				group[field] = value
			} else {
				out[field] = value
			}
		}
	}
	return out, nil
}

// PublishProject transitions the project to PUBLISHED unconditionally and
// reports whether the write landed. Idempotency is the caller's concern,
// checked via IsProjectComplete.
func (s *ProjectService) PublishProject(ctx context.Context, project *model.Project) (bool, error) {
	if project == nil {
		return false, ErrNoProjectSet
	}

	saved, err := s.projects.UpdateStatus(ctx, project.ID, story.StatusPublished)
	if err != nil {
		return false, err
	}

	if saved {
		project.Status = story.StatusPublished
		s.logger.Info("Project published successfully",
			zap.String("project", project.PublicID),
		)
	} else {
		s.logger.Error("Failed to publish project",
			zap.String("project", project.PublicID),
		)
	}
	return saved, nil
}

// IsProjectComplete reports whether the project has been published.
func (s *ProjectService) IsProjectComplete(project *model.Project) (bool, error) {
	if project == nil {
		return false, ErrNoProjectSet
	}
	return project.Status == story.StatusPublished, nil
}

// ArchiveProject is the administrative end-state transition, outside the
// wizard flow.
func (s *ProjectService) ArchiveProject(ctx context.Context, project *model.Project) (bool, error) {
	if project == nil {
		return false, ErrNoProjectSet
	}
	saved, err := s.projects.UpdateStatus(ctx, project.ID, story.StatusArchived)
	if err != nil {
		return false, err
	}
	if saved {
		project.Status = story.StatusArchived
	}
	return saved, nil
}

// ProjectsByTeam lists the team's projects for the dashboard.
func (s *ProjectService) ProjectsByTeam(ctx context.Context, team *model.Team) ([]model.Project, error) {
	if team == nil {
		return nil, ErrNoTeamSelected
	}
	return s.projects.ListByTeam(ctx, team.ID)
}

// CastValue applies the read-time casting policy to a stored value:
// integral strings become ints, decimal strings become floats, boolean
// literals become bools, and anything else passes through unchanged. The
// function is total and never fails on malformed input.
func CastValue(raw string) any {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	return raw
}

// valueToString normalizes an inbound JSON value for string storage.
func valueToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		// JSON numbers decode as float64; keep integral values free of
		// a trailing ".0" so they cast back to ints.
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// StatusLabel exposes the display label for a project's status, used by
// the dashboard resource payloads.
func StatusLabel(p *model.Project) string {
	return p.Status.Label()
}
