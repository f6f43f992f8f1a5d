package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-assess/internal/artifacts"
	"github.com/hugh/go-assess/internal/compiler"
	"github.com/hugh/go-assess/internal/database"
	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/internal/generation"
	"github.com/hugh/go-assess/internal/metrics"
	"github.com/hugh/go-assess/internal/pipeline"
	"github.com/hugh/go-assess/internal/prompts"
	"github.com/hugh/go-assess/internal/tasks"
	"github.com/hugh/go-assess/pkg/config"
	"github.com/hugh/go-assess/pkg/crypto"
	"github.com/hugh/go-assess/pkg/queue"
	"github.com/hugh/go-assess/pkg/util"
	"github.com/redis/go-redis/v9"
)

// schedulerSpec is how often automated report schedules are checked.
const schedulerSpec = "@every 1m"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env, &cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting go-assess worker")

	metrics.Init()

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen, err := generation.NewGeminiGenerator(ctx, cfg.GenAI)
	if err != nil {
		logger.Error("failed to create generator", "error", err)
		os.Exit(1)
	}

	var registry *prompts.Registry
	if cfg.Pipeline.PromptsDir != "" {
		registry, err = prompts.Open(cfg.Pipeline.PromptsDir)
	} else {
		registry, err = prompts.Default()
	}
	if err != nil {
		logger.Error("failed to load prompts", "error", err)
		os.Exit(1)
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}

	store, err := artifacts.New(ctx, cfg.Storage, encryptor)
	if err != nil {
		logger.Error("failed to open document store", "error", err)
		os.Exit(1)
	}

	contextFormat, err := compiler.ParseFormat(cfg.Pipeline.ContextFormat)
	if err != nil {
		logger.Error("invalid context format", "error", err)
		os.Exit(1)
	}

	// Per-organization run lock shared by every worker process
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	defer redisClient.Close()

	p := pipeline.New(db, store, gen, registry,
		pipeline.NewRedisLocker(redisClient, cfg.Pipeline.LockTTL()),
		logger,
		pipeline.Options{
			Format:  models.ReportFormat(cfg.Pipeline.ReportFormat),
			Persona: cfg.Pipeline.Persona,
			Generation: generation.Config{
				MaxRetries: cfg.Pipeline.MaxRetries,
				Delay:      cfg.Pipeline.RetryDelay(),
			},
			ContextFormat: contextFormat,
			ErrorPolicy:   compiler.Omit,
		},
	)

	// Asynq client lets the scheduler tick enqueue report jobs
	client := queue.NewClient(&cfg.Redis)
	defer client.Close()

	// Create Asynq server
	srv := queue.NewServer(&cfg.Redis, cfg.Pipeline.Concurrency, logger)

	// Create task handler
	handler := tasks.NewHandler(db, logger, p, client, cfg.Pipeline.JobTimeout())

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	scheduler := queue.NewScheduler(&cfg.Redis, logger)
	if _, err := scheduler.Register(schedulerSpec, tasks.NewSchedulerTickTask()); err != nil {
		logger.Error("failed to register scheduler tick", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// Generation and pipeline collectors are only recorded here
	var metricsSrv *http.Server
	if cfg.Pipeline.MetricsAddr != "" {
		metricsSrv = metrics.NewServer(cfg.Pipeline.MetricsAddr)
		go func() {
			logger.Info("serving worker metrics", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	// Handle shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		scheduler.Shutdown()
		srv.Shutdown()
		if metricsSrv != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics listener shutdown", "error", err)
			}
			done()
		}
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...",
		"concurrency", cfg.Pipeline.Concurrency,
		"report_format", cfg.Pipeline.ReportFormat,
	)

	// Start the server
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	// Wait for context cancellation
	<-ctx.Done()

	// Close database connection
	database.Close(db)

	logger.Info("worker stopped")
}
