package main

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"storyforge/config"
	"storyforge/internal/db"
	"storyforge/internal/logger"
	"storyforge/internal/mq"
	"storyforge/internal/mqhandler"
	"storyforge/internal/repository"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting storyforge worker...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("mq_url", cfg.MQ.URL),
	)

	// DB
	log.Info("Initializing database connection...")
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	notificationRepo := repository.NewNotificationRepository(dbConn, log)
	mailer := &mqhandler.LogMailer{Logger: log}

	passwordResetHandler := mqhandler.NewPasswordResetHandler(notificationRepo, mailer, log)
	storyPublishedHandler := mqhandler.NewStoryPublishedHandler(notificationRepo, mailer, log)

	// MQ Consumer for user.password_reset
	log.Info("Initializing MQ consumer for user.password_reset...",
		zap.String("queue", "user.password_reset.q"),
		zap.String("routing_key", mq.RoutingKeyPasswordReset),
	)
	resetConsumer, err := mq.NewConsumer(cfg.MQ.URL, "user.password_reset.q", mq.RoutingKeyPasswordReset, log)
	if err != nil {
		log.Fatal("Failed to init password reset consumer", zap.Error(err))
	}
	defer resetConsumer.Close()

	resetConsumer.SetHandler(passwordResetHandler.Handle)

	go func() {
		log.Info("Starting user.password_reset consumer...")
		if err := resetConsumer.StartConsuming(); err != nil {
			log.Fatal("Password reset consumer failed", zap.Error(err))
		}
	}()

	// MQ Consumer for story.published
	log.Info("Initializing MQ consumer for story.published...",
		zap.String("queue", "story.published.q"),
		zap.String("routing_key", mq.RoutingKeyStoryPublished),
	)
	publishedConsumer, err := mq.NewConsumer(cfg.MQ.URL, "story.published.q", mq.RoutingKeyStoryPublished, log)
	if err != nil {
		log.Fatal("Failed to init story published consumer", zap.Error(err))
	}
	defer publishedConsumer.Close()

	publishedConsumer.SetHandler(storyPublishedHandler.Handle)

	go func() {
		log.Info("Starting story.published consumer...")
		if err := publishedConsumer.StartConsuming(); err != nil {
			log.Fatal("Story published consumer failed", zap.Error(err))
		}
	}()

	log.Info("storyforge worker is fully initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down storyforge worker gracefully...")

	resetConsumer.Stop()
	publishedConsumer.Stop()
	dbConn.Close()

	log.Info("storyforge worker shutdown complete")
}
