package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/config"
	"github.com/stemsi/cbt-backend/internal/database"
	"github.com/stemsi/cbt-backend/internal/engine"
	"github.com/stemsi/cbt-backend/internal/handler"
	"github.com/stemsi/cbt-backend/internal/logger"
	"github.com/stemsi/cbt-backend/internal/metrics"
	"github.com/stemsi/cbt-backend/internal/middleware"
	"github.com/stemsi/cbt-backend/internal/repository"
	"github.com/stemsi/cbt-backend/internal/router"
	"github.com/stemsi/cbt-backend/internal/service"
	"github.com/stemsi/cbt-backend/internal/validator"
	"github.com/stemsi/cbt-backend/internal/worker"
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
		Dur("tick", cfg.TickInterval).
		Msg("Starting CBT Backend")

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	metrics.Init()

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
	userRepo := repository.NewUserRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, userRepo)
	examService := service.NewExamService(examRepo, questionRepo, rdb, cfg.DefaultPassPercent, log)
	questionService := service.NewQuestionService(questionRepo, examService, log)
	attemptService := service.NewAttemptService(attemptRepo, examService)
	statsService := service.NewStatsService(attemptRepo, examService)
	sessionRegistry := service.NewRedisSessionRegistry(rdb)
	studentService := service.NewStudentService(userRepo, authService, sessionRegistry, log)

	eng := engine.New(questionService, attemptRepo, engine.WithDefaultPassPercent(cfg.DefaultPassPercent))
	sessionManager := service.NewSessionManager(
		eng,
		examService,
		sessionRegistry,
		cfg.TickInterval,
		log,
	)
	monitorService := service.NewMonitorService(rdb, sessionManager, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService, log),
		Question: handler.NewQuestionHandler(questionService, log),
		Exam:     handler.NewExamHandler(examService, attemptService, log),
		Session:  handler.NewSessionHandler(sessionManager, log),
		Attempt:  handler.NewAttemptHandler(attemptService, studentService, log),
		Stats:    handler.NewStatsHandler(statsService, studentService, log),
		Student:  handler.NewStudentHandler(studentService, log),
		Monitor:  handler.NewMonitorHandler(examService, monitorService, log),
		System:   handler.NewSystemHandler(pool, rdb, sessionManager, log),
		WS:       handler.NewWSHandler(sessionManager, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	attemptWorker := worker.NewAttemptWorker(attemptRepo, rdb, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		attemptWorker.Start(workerCtx)
	}()

	loginLimiter := middleware.NewRateLimiter(cfg.LoginRateLimit, time.Minute)
	go loginLimiter.Cleanup(workerCtx.Done())

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load active exams into Redis before accepting traffic so the first
	// wave of session starts does not stampede PostgreSQL.
	if err := examService.PrewarmActive(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, loginLimiter, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	// 2. Stop countdowns and free session claims. This also ends WebSocket
	// streams, which srv.Shutdown does not track.
	if err := sessionManager.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Session manager shutdown error")
	}

	// 3. Stop background workers and wait for the retry batch to flush.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
