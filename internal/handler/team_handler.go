package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyforge/internal/service"
)

type TeamHandler struct {
	accounts *service.AccountService
	logger   *zap.Logger
}

func NewTeamHandler(accounts *service.AccountService, logger *zap.Logger) *TeamHandler {
	return &TeamHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// GET /teams
func (h *TeamHandler) ListTeams(c *gin.Context) {
	user := CurrentUser(c)

	teams, err := h.accounts.TeamsForUser(c.Request.Context(), user)
	if err != nil {
		h.logger.Error("Failed to list teams", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list teams"})
		return
	}

	current := user.CurrentTeamKey()
	out := make([]gin.H, 0, len(teams))
	for _, t := range teams {
		out = append(out, gin.H{
			"id":      t.PublicID,
			"slug":    t.Slug(),
			"name":    t.Label,
			"current": t.Key == current,
		})
	}
	c.JSON(http.StatusOK, gin.H{"teams": out})
}

type selectTeamRequest struct {
	Team string `json:"team" binding:"required"`
}

// POST /teams/select
func (h *TeamHandler) SelectTeam(c *gin.Context) {
	var req selectTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := h.accounts.SelectTeam(c.Request.Context(), CurrentUser(c), req.Team)
	if err != nil {
		if errors.Is(err, service.ErrNoTeamSelected) {
			c.JSON(http.StatusNotFound, gin.H{"error": "team not found"})
			return
		}
		h.logger.Error("Failed to select team", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to select team"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"team": gin.H{"id": team.PublicID, "slug": team.Slug(), "name": team.Label},
	})
}
