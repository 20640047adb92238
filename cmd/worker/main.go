package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"petamigos/contentguard/internal/cache"
	"petamigos/contentguard/internal/config"
	"petamigos/contentguard/internal/database"
	"petamigos/contentguard/internal/log"
	"petamigos/contentguard/internal/queue"
	"petamigos/contentguard/internal/repository"
	"petamigos/contentguard/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()
	if err := database.Migrate(ctx, dbPool); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	processor := tasks.NewAuditProcessor(repository.NewModerationRepository(dbPool), logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Redis.Stream,
		cfg.Redis.Group,
		cfg.Redis.Consumer,
		cfg.Queues.ClaimInterval,
		logger,
		processor,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
