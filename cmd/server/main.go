package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hugh/go-assess/internal/api"
	"github.com/hugh/go-assess/internal/artifacts"
	"github.com/hugh/go-assess/internal/auth"
	"github.com/hugh/go-assess/internal/database"
	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/internal/metrics"
	"github.com/hugh/go-assess/pkg/config"
	"github.com/hugh/go-assess/pkg/crypto"
	"github.com/hugh/go-assess/pkg/queue"
	"github.com/hugh/go-assess/pkg/util"
	"github.com/redis/go-redis/v9"
)

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

	logger.Info("starting go-assess server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	metrics.Init()

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if cfg.Server.IsDevelopment() {
		if err := database.AutoMigrate(db); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis, report requests will fail until it is reachable", "error", err)
	}

	// Asynq client for report jobs
	asynqClient := queue.NewClient(&cfg.Redis)

	// Initialize services
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService)

	// Encryptor for sealed document storage
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" && cfg.Storage.Seal {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - sealed documents will be unreadable after restart")
	}

	store, err := artifacts.New(context.Background(), cfg.Storage, encryptor)
	if err != nil {
		logger.Error("failed to open document store", "error", err)
		os.Exit(1)
	}

	var origins []string
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins = strings.Split(v, ",")
	}

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTService:     jwtService,
		AuthService:    authService,
		Queue:          asynqClient,
		Store:          store,
		AllowedOrigins: origins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
		CSRFSecret:     cfg.JWT.Secret,
		SecureCookies:  !cfg.Server.IsDevelopment(),
		ReportFormat:   models.ReportFormat(cfg.Pipeline.ReportFormat),
		JobTimeout:     cfg.Pipeline.JobTimeout(),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	asynqClient.Close()
	redisClient.Close()

	// Close database connection
	database.Close(db)

	logger.Info("server stopped")
}
