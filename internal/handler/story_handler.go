package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyforge/internal/model"
	"storyforge/internal/service"
	"storyforge/internal/session"
	"storyforge/internal/story"
	"storyforge/internal/util"
)

const sessionCookie = "story_session"

// routePaths maps workflow route names onto URL templates. Params not
// consumed by the template are appended as query parameters.
var routePaths = map[string]string{
	service.RouteStory:         "/story",
	service.RouteStoryCreate:   "/story/new",
	service.RouteStoryContinue: "/story/:project/continue",
	service.RouteStoryForm:     "/story/:project/step/:step",
	service.RouteStoryComplete: "/story/:project/complete",
}

type StoryHandler struct {
	stories  *service.StoryService
	sessions session.Store
	logger   *zap.Logger
}

func NewStoryHandler(stories *service.StoryService, sessions session.Store, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		stories:  stories,
		sessions: sessions,
		logger:   logger,
	}
}

// CurrentUser returns the authenticated user installed by the auth
// middleware.
func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get("user"); ok {
		if user, ok := v.(*model.User); ok {
			return user
		}
	}
	return nil
}

func (h *StoryHandler) sessionID(c *gin.Context) string {
	if id, err := c.Cookie(sessionCookie); err == nil && id != "" {
		return id
	}
	id := util.NewTokenID()
	c.SetCookie(sessionCookie, id, 86400, "/", "", false, true)
	return id
}

// writeDirective translates a workflow decision into the HTTP response:
// renders answer 200 with the view and its props, redirects answer 302
// with the resolved location. Flashes ride along in both cases.
func (h *StoryHandler) writeDirective(c *gin.Context, sessionID string, d service.Directive) {
	if d.Flash != nil {
		if err := h.sessions.PushFlash(c.Request.Context(), sessionID, *d.Flash); err != nil {
			h.logger.Warn("Failed to flash message", zap.Error(err))
		}
	}

	if d.Kind == service.DirectiveRedirect {
		location := resolveRoute(d.Route, d.Params)
		c.Header("Location", location)
		c.JSON(http.StatusFound, gin.H{
			"redirect": location,
			"route":    d.Route,
			"params":   d.Params,
		})
		return
	}

	flashes, err := h.sessions.PopFlashes(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Warn("Failed to pop flashes", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{
		"view":    d.View,
		"props":   d.Props,
		"flashes": flashes,
	})
}

func resolveRoute(route string, params map[string]string) string {
	path, ok := routePaths[route]
	if !ok {
		return "/story"
	}

	used := map[string]bool{}
	out := ""
	for _, segment := range splitPath(path) {
		if len(segment) > 0 && segment[0] == ':' {
			name := segment[1:]
			out += "/" + params[name]
			used[name] = true
			continue
		}
		out += "/" + segment
	}

	query := ""
	for k, v := range params {
		if used[k] || v == "" {
			continue
		}
		if query == "" {
			query = "?"
		} else {
			query += "&"
		}
		query += k + "=" + v
	}
	return out + query
}

func splitPath(path string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				out = append(out, path[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// GET /story
func (h *StoryHandler) Entry(c *gin.Context) {
	sessionID := h.sessionID(c)
	d, err := h.stories.Entry(c.Request.Context(), CurrentUser(c))
	if err != nil {
		h.fail(c, "Failed to resolve story entry", err)
		return
	}
	h.writeDirective(c, sessionID, d)
}

// GET /story/new
func (h *StoryHandler) NewStory(c *gin.Context) {
	sessionID := h.sessionID(c)
	d, err := h.stories.NewStoryPage(c.Request.Context(), CurrentUser(c))
	if err != nil {
		h.fail(c, "Failed to load the story creation page", err)
		return
	}
	h.writeDirective(c, sessionID, d)
}

type createStoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// POST /story
func (h *StoryHandler) CreateStory(c *gin.Context) {
	sessionID := h.sessionID(c)

	var req createStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.stories.CreateStory(c.Request.Context(), CurrentUser(c), req.Name, req.Description)
	if err != nil {
		h.fail(c, "Failed to create story", err)
		return
	}
	h.writeDirective(c, sessionID, d)
}

// GET /story/:project/continue
func (h *StoryHandler) ContinueStory(c *gin.Context) {
	sessionID := h.sessionID(c)
	d, err := h.stories.ContinueStory(c.Request.Context(), sessionID, CurrentUser(c), c.Param("project"))
	if err != nil {
		h.fail(c, "Failed to continue story", err)
		return
	}
	h.writeDirective(c, sessionID, d)
}

// GET /story/:project/step/:step?token=...&page=1&direction=next
func (h *StoryHandler) LoadForm(c *gin.Context) {
	sessionID := h.sessionID(c)

	stepSlug := c.Param("step")
	if _, ok := story.StepFromSlug(stepSlug); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step"})
		return
	}

	page := 1
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
			return
		}
		page = parsed
	}

	d, err := h.stories.LoadForm(c.Request.Context(), CurrentUser(c),
		c.Param("project"), stepSlug, c.Query("token"), page, c.Query("direction"))
	if err != nil {
		h.fail(c, "Failed to load form", err)
		return
	}
	h.writeDirective(c, sessionID, d)
}

type saveFormRequest struct {
	ProjectID string         `json:"project_id" binding:"required"`
	StepID    string         `json:"step_id" binding:"required"`
	Token     string         `json:"token" binding:"required"`
	Page      int            `json:"page" binding:"required,min=1"`
	Values    map[string]any `json:"values"`
}

// POST /story/save
func (h *StoryHandler) SaveForm(c *gin.Context) {
	sessionID := h.sessionID(c)

	var req saveFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, ok := story.StepFromSlug(req.StepID); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step"})
		return
	}

	result, err := h.stories.SaveForm(c.Request.Context(), sessionID, CurrentUser(c), service.SaveFormInput{
		ProjectID: req.ProjectID,
		StepID:    req.StepID,
		Token:     req.Token,
		Page:      req.Page,
		Values:    req.Values,
	})
	if err != nil {
		h.fail(c, "Failed to save form", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type publishStoryRequest struct {
	Token string `json:"token" binding:"required"`
}

// POST /story/:project/publish
func (h *StoryHandler) PublishStory(c *gin.Context) {
	sessionID := h.sessionID(c)

	var req publishStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.stories.PublishStory(c.Request.Context(), sessionID, CurrentUser(c), c.Param("project"), req.Token)
	if err != nil {
		h.fail(c, "Failed to publish story", err)
		return
	}
	h.writeDirective(c, sessionID, d)
}

// GET /story/:project/complete?token=...
func (h *StoryHandler) CompleteStory(c *gin.Context) {
	sessionID := h.sessionID(c)
	d, err := h.stories.CompleteStory(c.Request.Context(), CurrentUser(c), c.Param("project"), c.Query("token"))
	if err != nil {
		h.fail(c, "Failed to load completion page", err)
		return
	}
	h.writeDirective(c, sessionID, d)
}

// GET /dashboard
func (h *StoryHandler) Dashboard(c *gin.Context) {
	sessionID := h.sessionID(c)
	d, err := h.stories.Dashboard(c.Request.Context(), CurrentUser(c))
	if err != nil {
		h.fail(c, "Failed to load dashboard", err)
		return
	}
	h.writeDirective(c, sessionID, d)
}

// GET /flashes drains the pending messages for the session.
func (h *StoryHandler) Flashes(c *gin.Context) {
	sessionID := h.sessionID(c)
	flashes, err := h.sessions.PopFlashes(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, "Failed to pop flashes", err)
		return
	}
	if flashes == nil {
		flashes = []session.Flash{}
	}
	c.JSON(http.StatusOK, gin.H{"flashes": flashes})
}

func (h *StoryHandler) fail(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
