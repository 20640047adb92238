package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"petamigos/contentguard/internal/cache"
	"petamigos/contentguard/internal/config"
	"petamigos/contentguard/internal/database"
	"petamigos/contentguard/internal/guard"
	"petamigos/contentguard/internal/handlers"
	"petamigos/contentguard/internal/jobs"
	"petamigos/contentguard/internal/lexicon"
	"petamigos/contentguard/internal/log"
	"petamigos/contentguard/internal/media/validator"
	"petamigos/contentguard/internal/middleware"
	"petamigos/contentguard/internal/moderation"
	"petamigos/contentguard/internal/ocr"
	"petamigos/contentguard/internal/queue"
	"petamigos/contentguard/internal/repository"
	"petamigos/contentguard/internal/server"
	"petamigos/contentguard/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if err := database.Migrate(ctx, dbPool); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}
	reviews := repository.NewModerationRepository(dbPool)

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		if cfg.Audit.Mode == config.AuditModeStream {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		logger.Warn().Err(err).Msg("redis unavailable, continuing without it")
		redisClient = nil
	}

	var sink moderation.Sink = reviews
	if cfg.Audit.Mode == config.AuditModeStream {
		sink = queue.NewPublisher(redisClient, cfg.Redis.Stream)
	}

	var evidence moderation.EvidenceStore
	if cfg.Storage.Enabled {
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure evidence bucket failed")
		}
		evidence = objectStore
	}

	terms, err := loadTerms(cfg.Lexicon)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load banned terms")
	}
	if dropped := terms.Dropped(); len(dropped) > 0 {
		logger.Warn().Strs("terms", dropped).Msg("banned terms that are not single words were skipped")
	}
	logger.Info().Int("terms", terms.Len()).Msg("banned term list loaded")

	scanner := lexicon.NewScanner(terms)
	images := validator.NewValidator(cfg.Guard.MaxWidth, cfg.Guard.MaxHeight)
	engine := ocr.NewHTTPEngine(
		cfg.OCR.Endpoint,
		&http.Client{Timeout: cfg.OCR.Timeout},
		ocr.NewCircuitBreaker("ocr-engine", cfg.OCR.BreakerTimeout, cfg.OCR.BreakerMaxFailures),
		logger,
	)
	extractor := ocr.NewExtractor(images, engine, scanner, ocr.Options{
		Languages:     cfg.OCR.Languages,
		Timeout:       cfg.OCR.Timeout,
		MaxConcurrent: cfg.OCR.MaxConcurrent,
	}, logger)
	violations := moderation.NewService(sink, evidence, logger)
	gate := guard.NewGate(cfg.Guard.TextFields, scanner, images, extractor, violations, logger)

	deps := handlers.Deps{
		Reviews: reviews,
		Guard: middleware.ContentGuard(gate, middleware.GuardOptions{
			FileField:      cfg.Guard.FileField,
			MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		}, logger),
		DB: dbPool,
	}
	if redisClient != nil {
		deps.Cache = redisClient
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, deps)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(reviews, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func loadTerms(cfg config.LexiconConfig) (*lexicon.TermSet, error) {
	if cfg.Path == "" {
		return lexicon.NewTermSet(cfg.Terms), nil
	}
	return lexicon.LoadTermFile(cfg.Path, cfg.Terms...)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()

	db.Close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
