package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vytor/flashstudy/internal/api"
	"github.com/vytor/flashstudy/internal/clock"
	"github.com/vytor/flashstudy/internal/config"
	"github.com/vytor/flashstudy/internal/db"
	"github.com/vytor/flashstudy/internal/flashcard"
	"github.com/vytor/flashstudy/internal/generation"
	"github.com/vytor/flashstudy/internal/jobs"
	"github.com/vytor/flashstudy/internal/logger"
	"github.com/vytor/flashstudy/internal/repository/sqlite"
	"github.com/vytor/flashstudy/internal/services"
	"github.com/vytor/flashstudy/internal/worker"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Error("failed to load configuration: %v", err)
		os.Exit(2)
	}

	// Initialize logger
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithJSON(cfg.LogFormat == "json"),
		logger.WithColors(cfg.LogFormat == "console"),
	)
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	log.Info("flashstudy server starting")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("timezone=%s", cfg.Timezone)
	log.Debug("session_size=%d max_session_size=%d session_ttl=%v", cfg.SessionSize, cfg.MaxSessionSize, cfg.SessionTTL)
	log.Debug("llm_model=%s llm_base_url=%s", cfg.LLMModel, cfg.LLMBaseURL)
	log.Debug("generation_worker_count=%d generation_queue_size=%d", cfg.GenerationWorkerCount, cfg.GenerationQueueSize)

	// Open database
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()

	policy, err := flashcard.NewPolicy(cfg.SchedulerParams())
	if err != nil {
		log.Error("invalid scheduler parameters: %v", err)
		os.Exit(1)
	}

	generator, err := generation.NewLLMGenerator(cfg.Generator())
	if err != nil {
		log.Error("failed to create generator: %v", err)
		os.Exit(1)
	}

	// Repositories
	userRepo := sqlite.NewUserRepository(database.DB)
	cardRepo := sqlite.NewFlashcardRepository(database.DB)
	reviewRepo := sqlite.NewReviewRepository(database.DB)
	generationRepo := sqlite.NewGenerationRepository(database.DB)

	// Background generation
	generationPool := worker.NewPool(cfg.GenerationWorkerCount, cfg.GenerationQueueSize, cfg.LLMTimeout)
	queue := jobs.NewWorkerQueue(generationPool)

	// Services
	clk := clock.System()
	userService := services.NewUserService(userRepo)
	flashcardService := services.NewFlashcardService(cardRepo, generationRepo, policy, clk)
	generationService := services.NewGenerationService(generationRepo, generator, queue, policy, clk, cfg.Generation())
	studyService := services.NewStudyService(cardRepo, reviewRepo, policy,
		services.NewSessionRegistry(cfg.SessionTTL), clk, cfg.Study())
	queue.SetGenerationProcessor(services.Processor(generationService))

	srv := api.NewServer(database.DB, generationPool, userService, flashcardService, generationService, studyService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Source text lives only in the job queue, so nothing left pending by a
	// previous run can be processed.
	if _, err := generationService.FailPending(ctx, "interrupted by server restart"); err != nil {
		log.Error("failed to clear pending generations: %v", err)
	}
	generationPool.Start(ctx)

	// Configure HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server
	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting requests first so no new generations are queued.
	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	log.Debug("stopping generation pool")
	generationPool.Stop()

	// Jobs still queued were dropped by Stop.
	if n, err := generationService.FailPending(context.Background(), "interrupted by server shutdown"); err != nil {
		log.Error("failed to fail dropped generations: %v", err)
	} else if n > 0 {
		log.Info("marked %d queued generations failed", n)
	}

	log.Info("flashstudy server stopped")
}
