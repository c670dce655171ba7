package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storyforge/internal/handler"
	"storyforge/internal/mq"
	"storyforge/internal/service"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *handler.AuthHandler,
	storyHandler *handler.StoryHandler,
	teamHandler *handler.TeamHandler,
	adminHandler *handler.AdminHandler,
	authService *service.AuthService,
	db *pgxpool.Pool,
	publisher *mq.Publisher,
	logger *zap.Logger,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		if publisher != nil && !publisher.IsConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)
	r.POST("/password/forgot", authHandler.ForgotPassword)
	r.POST("/password/reset", authHandler.ResetPassword)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(authService))
	{
		auth.GET("/story", storyHandler.Entry)
		auth.GET("/story/new", storyHandler.NewStory)
		auth.POST("/story", storyHandler.CreateStory)
		auth.GET("/story/:project/continue", storyHandler.ContinueStory)
		auth.GET("/story/:project/step/:step", storyHandler.LoadForm)
		auth.POST("/story/save", storyHandler.SaveForm)
		auth.POST("/story/:project/publish", storyHandler.PublishStory)
		auth.GET("/story/:project/complete", storyHandler.CompleteStory)
		auth.GET("/dashboard", storyHandler.Dashboard)
		auth.GET("/flashes", storyHandler.Flashes)
		auth.GET("/teams", teamHandler.ListTeams)
		auth.POST("/teams/select", teamHandler.SelectTeam)
	}

	// Back-office
	admin := r.Group("/admin")
	admin.Use(AuthMiddleware(authService), RequireAdmin())
	{
		admin.POST("/users", adminHandler.CreateUser)
		admin.GET("/users", adminHandler.ListUsers)
		admin.GET("/users/search", adminHandler.SearchUsers)
		admin.GET("/users/:id", adminHandler.GetUser)
		admin.GET("/users/:id/tokens", adminHandler.UserTokens)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
