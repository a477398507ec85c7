package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/afftrack/linktrack/internal/api"
	"github.com/afftrack/linktrack/internal/config"
	"github.com/afftrack/linktrack/internal/dedup"
	"github.com/afftrack/linktrack/internal/follower"
	"github.com/afftrack/linktrack/internal/handler"
	"github.com/afftrack/linktrack/internal/logger"
	"github.com/afftrack/linktrack/internal/recorder"
	"github.com/afftrack/linktrack/internal/signing"
	"github.com/afftrack/linktrack/internal/storage"

	_ "github.com/lib/pq"
)

// Database connection timeout.
const dbPingTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	db, err := connectDatabase(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database", logger.Error(err))
		return 1
	}
	defer func() { _ = db.Close() }()

	return runServer(cfg, log, db)
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	configPath := config.GetConfigPath("config.yml")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// connectDatabase opens and verifies a database connection.
func connectDatabase(cfg *config.Config, log logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	log.Info("Database connected",
		logger.String("host", cfg.Database.Host),
		logger.Int("port", cfg.Database.Port),
		logger.String("database", cfg.Database.Database),
	)

	return db, nil
}

// dedupCache opens the optional Redis tier. A missing address means
// Postgres-only lookups; a failed ping is a hard error because a
// half-working cache would skew dedup decisions.
func dedupCache(cfg *config.Config, log logger.Logger) (dedup.Cache, error) {
	if cfg.Redis.Address == "" {
		log.Info("Redis not configured, dedup runs on Postgres only")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info("Redis connected", logger.String("address", cfg.Redis.Address))
	return dedup.NewRedisCache(client, cfg.Dedup.Window), nil
}

// runServer creates all dependencies and starts the HTTP server.
func runServer(cfg *config.Config, log logger.Logger, db *sql.DB) int {
	store := storage.New(db, log)

	cache, err := dedupCache(cfg, log)
	if err != nil {
		log.Error("Failed to connect to redis", logger.Error(err))
		return 1
	}

	policy := dedup.New(store, cache, cfg.Dedup.Window, log)

	follow := follower.New(follower.Config{
		MaxHops:    cfg.Follower.MaxHops,
		HopTimeout: cfg.Follower.HopTimeout,
		UserAgent:  cfg.Follower.UserAgent,
		RetryHops:  cfg.Follower.RetryHops,
	}, log)

	rec := recorder.New(cfg.Service.BufferSize, log)
	rec.Start()
	defer rec.Stop()

	orch := handler.New(
		store,
		follow,
		policy,
		rec,
		signing.NewSigner(cfg.Service.HMACSecret),
		handler.Config{
			BaseURL:          cfg.Service.BaseURL,
			FallbackURL:      cfg.Service.FallbackURL,
			RequireSignature: cfg.Service.RequireSignature,
			SettlingDelay:    cfg.Service.SettlingDelay,
		},
		log,
	)

	health := handler.NewHealthHandler(cfg.Service.Version, store.Ping)

	server := api.NewServer(orch, health, cfg, log)

	log.Info("Linktrack starting",
		logger.Int("port", cfg.Service.Port),
		logger.String("version", cfg.Service.Version),
	)

	if err := server.Run(); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("Linktrack exited cleanly")
	return 0
}
