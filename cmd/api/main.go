// Package main is the entrypoint for the remoteprint API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/remoteprint/remoteprint/internal/cache"
	"github.com/remoteprint/remoteprint/internal/config"
	"github.com/remoteprint/remoteprint/internal/handler"
	"github.com/remoteprint/remoteprint/internal/metrics"
	"github.com/remoteprint/remoteprint/internal/middleware"
	"github.com/remoteprint/remoteprint/internal/repository"
	"github.com/remoteprint/remoteprint/internal/server"
	"github.com/remoteprint/remoteprint/internal/service"
	"github.com/remoteprint/remoteprint/internal/storage"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		repo.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	// Initialize blob storage
	store, err := newStore(ctx, cfg)
	if err != nil {
		repo.Close()
		_ = cacheClient.Close()
		logger.Error("failed to initialize storage",
			slog.String("backend", cfg.StorageBackend),
			slog.String("error", sanitizeError(err, cfg.S3SecretKey)),
		)
		os.Exit(1)
	}
	logger.Info("storage ready",
		slog.String("backend", cfg.StorageBackend),
		slog.String("bucket", cfg.StorageBucket),
	)

	if cfg.ResetTokenHash == "" {
		logger.Warn("RESET_TOKEN_HASH is not set; /functions/v1/resetMonthlyCount is open")
	}

	// Initialize services
	recorder := metrics.NewInMemory()
	authenticator := service.NewAuthenticator(repo, repo, cacheClient, logger, recorder)
	intakeService := service.NewPrintJobService(authenticator, repo, repo, store, logger, recorder)
	resetService := service.NewResetService(repo, logger, recorder)
	accountService := service.NewAccountService(repo, repo, repo, repo, cacheClient, logger)

	// Initialize handlers and router
	router := server.NewRouter(server.RouterConfig{
		Logger:        logger,
		IsDevelopment: cfg.IsDevelopment(),
		Root:          handler.New(),
		Health:        handler.NewHealthHandler(repo, cacheClient, store),
		Metrics:       handler.NewMetricsHandler(recorder),
		Functions: handler.NewFunctionsHandler(handler.FunctionsConfig{
			Logger:         logger,
			Intake:         intakeService,
			Reset:          resetService,
			MaxBodySize:    cfg.MaxRequestBodySize,
			ResetTokenHash: cfg.ResetTokenHash,
		}),
		Accounts:        handler.NewAccountHandler(accountService, logger),
		Authenticator:   authenticator,
		MinAuthDuration: middleware.DefaultMinAuthDuration,
		RateLimit: middleware.RateLimitConfig{
			Logger:            logger,
			Limiter:           cacheClient,
			APIEnabled:        cfg.RateLimitAPIEnabled,
			IntakeEnabled:     cfg.RateLimitIntakeEnabled,
			IntakeRPS:         cfg.RateLimitIntakeRPS,
			IntakeBurst:       cfg.RateLimitIntakeBurst,
			TrustProxyHeaders: cfg.TrustProxyHeaders,
		},
		CORS: corsConfig(cfg),
	})

	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered in dependency order; they run in reverse.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"storage_backend", cfg.StorageBackend,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newStore builds the blob store selected by STORAGE_BACKEND.
func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendFS:
		return storage.NewFSStore(cfg.StorageFSRoot, cfg.StorageBucket)
	case config.StorageBackendS3:
		return storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			Region:    cfg.S3Region,
			Bucket:    cfg.StorageBucket,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	return cors
}

// initLogger initializes the slog logger based on configuration.
// Production always logs JSON.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" || cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL strips the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError removes secrets from an error message before logging.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" || redacted == secret {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
