package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/certilearn/certilearn-backend/internal/collaborator"
	"github.com/certilearn/certilearn-backend/internal/config"
	"github.com/certilearn/certilearn-backend/internal/database"
	"github.com/certilearn/certilearn-backend/internal/handler"
	"github.com/certilearn/certilearn-backend/internal/logger"
	"github.com/certilearn/certilearn-backend/internal/repository"
	"github.com/certilearn/certilearn-backend/internal/router"
	"github.com/certilearn/certilearn-backend/internal/service"
	"github.com/certilearn/certilearn-backend/internal/store"
	"github.com/certilearn/certilearn-backend/internal/validator"
	"github.com/certilearn/certilearn-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting CertiLearn Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	attemptRepo := repository.NewAttemptRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	violationRepo := repository.NewViolationRepository(pool)

	// ─── Initialize Collaborator Clients ──────────────────────────────
	generator := collaborator.NewHTTPGenerator(cfg.GeneratorURL, log)
	grading := collaborator.NewGradingClient(cfg.GradingURL, log)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	answerStore := store.NewRedisAnswerStore(rdb, log)
	violationSink := store.NewRedisViolationSink(rdb, log)
	cooldownService := service.NewCooldownService(attemptRepo, cfg.RetakeCooldown)
	attemptService := service.NewAttemptService(attemptRepo, violationRepo, cooldownService, generator, rdb, log)
	accessGuard := service.NewAccessGuard(attemptRepo, answerStore, log)
	dispatcher := service.NewSubmissionDispatcher(attemptRepo, rdb, log)
	sessionService := service.NewSessionService(accessGuard, answerStore, dispatcher, violationSink, rdb, cfg, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, cfg),
		Attempt: handler.NewAttemptHandler(attemptService, sessionService),
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	answerWorker := worker.NewAnswerWorker(answerRepo, rdb, log)
	violationWorker := worker.NewViolationWorker(violationRepo, rdb, log)
	submissionWorker := worker.NewSubmissionWorker(grading, attemptRepo, answerRepo, rdb, log)

	go answerWorker.Start(workerCtx)
	go violationWorker.Start(workerCtx)
	go submissionWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Freeze live sessions without submitting; in-progress attempts
	//    stay resumable after a restart.
	sessionService.Shutdown()

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
