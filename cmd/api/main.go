package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"storyforge/config"
	"storyforge/internal/db"
	"storyforge/internal/handler"
	"storyforge/internal/httpserver"
	"storyforge/internal/logger"
	"storyforge/internal/mq"
	"storyforge/internal/repository"
	"storyforge/internal/service"
	"storyforge/internal/session"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	log.Info("Starting storyforge api...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("port", cfg.Server.Port),
	)

	// DB
	log.Info("Initializing database connection...")
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureSchema(ctx, dbConn, log); err != nil {
		cancel()
		log.Fatal("Failed to ensure schema", zap.Error(err))
	}
	cancel()
	log.Info("Database connection established successfully")

	// Redis sessions
	redisClient := session.NewRedisClient(cfg.Redis)
	sessions := session.NewRedisStore(redisClient)
	defer redisClient.Close()

	// MQ publisher
	log.Info("Initializing MQ publisher...")
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Repositories
	tokenRepo := repository.NewTokenRepository(dbConn, log)
	projectRepo := repository.NewProjectRepository(dbConn, log)
	responseRepo := repository.NewResponseRepository(dbConn, log)
	userRepo := repository.NewUserRepository(dbConn, log)
	teamRepo := repository.NewTeamRepository(dbConn, log)

	// Services
	tokenService := service.NewTokenService(tokenRepo, cfg.Token, log)
	projectService := service.NewProjectService(projectRepo, responseRepo, log)
	storyService := service.NewStoryService(tokenService, projectService, teamRepo, sessions, publisher, log)
	authService := service.NewAuthService(userRepo, teamRepo, cfg.JWT, log)
	accountService := service.NewAccountService(userRepo, teamRepo, publisher, log)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, accountService, log)
	storyHandler := handler.NewStoryHandler(storyService, sessions, log)
	teamHandler := handler.NewTeamHandler(accountService, log)
	adminHandler := handler.NewAdminHandler(accountService, tokenService, log)

	router := httpserver.NewRouter(authHandler, storyHandler, teamHandler, adminHandler, authService, dbConn, publisher, log)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router.Engine,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("storyforge api is fully initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down storyforge api gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("storyforge api shutdown complete")
}
