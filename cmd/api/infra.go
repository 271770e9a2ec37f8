package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yourusername/spa-auth/internal/config"
	"github.com/yourusername/spa-auth/internal/database"
	"github.com/yourusername/spa-auth/internal/logging"
	"github.com/yourusername/spa-auth/internal/session"
)

// setupDatabase は接続を開き、起動時にマイグレーションを適用します。
func setupDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Driver:          cfg.DBDriver,
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, err
	}

	gooseLogger := logging.GooseLogger{Logger: logger.Named("migrate").Sugar()}
	if err := database.Migrate(ctx, db.DB, cfg.DBDriver, gooseLogger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// setupSessionStore は Redis に接続し、セッションストアを作成します。
func setupSessionStore(ctx context.Context, cfg *config.Config) (*redis.Client, *session.Store, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	redisClient := redis.NewClient(opt)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	store := session.NewStore(redisClient, cfg.SessionIdleTimeout, cfg.SessionLifetime)
	return redisClient, store, nil
}
