package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyforge/internal/model"
	"storyforge/internal/service"
	"storyforge/internal/story"
)

// AdminHandler is the back-office surface: account provisioning and token
// inspection. Routes are gated on the admin roles by middleware.
type AdminHandler struct {
	accounts *service.AccountService
	tokens   *service.TokenService
	logger   *zap.Logger
}

func NewAdminHandler(accounts *service.AccountService, tokens *service.TokenService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		accounts: accounts,
		tokens:   tokens,
		logger:   logger,
	}
}

type createUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

// POST /admin/users
//
// The generated password is returned exactly once.
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := story.Role(req.Role)
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	user, password, err := h.accounts.CreateUser(c.Request.Context(), req.Name, req.Email, role)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
			return
		}
		h.logger.Error("Failed to create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":     userResource(user),
		"password": password,
	})
}

// GET /admin/users?limit=25&offset=0
func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	users, err := h.accounts.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}

	total, err := h.accounts.CountUsers(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to count users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}

	out := make([]gin.H, 0, len(users))
	for i := range users {
		out = append(out, userResource(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "total": total})
}

// GET /admin/users/search?q=term
func (h *AdminHandler) SearchUsers(c *gin.Context) {
	users, err := h.accounts.SearchUsers(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.logger.Error("Failed to search users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search users"})
		return
	}

	out := make([]gin.H, 0, len(users))
	for i := range users {
		out = append(out, userResource(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// GET /admin/users/:id
func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.accounts.UserByPublicID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("Failed to fetch user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userResource(user)})
}

// GET /admin/users/:id/tokens
func (h *AdminHandler) UserTokens(c *gin.Context) {
	user, err := h.accounts.UserByPublicID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("Failed to fetch user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch user"})
		return
	}

	tokens, err := h.tokens.TokensByUser(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("Failed to list tokens", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tokens"})
		return
	}

	out := make([]gin.H, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, gin.H{
			"id":         t.PublicID,
			"project_id": t.ProjectID,
			"expires_at": t.ExpiresAt,
			"revoked":    t.IsRevoked(),
			"created_at": t.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tokens": out})
}

func userResource(u *model.User) gin.H {
	return gin.H{
		"id":         u.PublicID,
		"name":       u.Name,
		"email":      u.Email,
		"role":       u.Role,
		"role_label": u.Role.Label(),
		"created_at": u.CreatedAt,
	}
}
