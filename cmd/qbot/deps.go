package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/suPer8Hu/qbot/internal/ai"
	"github.com/suPer8Hu/qbot/internal/chat"
	"github.com/suPer8Hu/qbot/internal/config"
	"github.com/suPer8Hu/qbot/internal/db"
	"github.com/suPer8Hu/qbot/internal/store/redisstore"
)

func openDB(cfg config.Config, logger *slog.Logger) (*gorm.DB, error) {
	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		db.Close(gdb, logger)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready", "driver", cfg.DBDriver)
	return gdb, nil
}

// openRedis returns nil when Redis is not configured or unreachable; the
// limiter and the model cache are optional.
func openRedis(ctx context.Context, cfg config.Config, logger *slog.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	rdb := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisstore.Ping(ctx, rdb); err != nil {
		logger.Warn("redis unavailable, continuing without cache and rate limit", "addr", cfg.RedisAddr, "error", err)
		_ = rdb.Close()
		return nil
	}
	logger.Info("redis ready", "addr", cfg.RedisAddr)
	return rdb
}

func newRegistry(cfg config.Config, rdb *redis.Client, logger *slog.Logger) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Timeout = cfg.AIRequestTimeout
	reg.Logger = logger
	if rdb != nil {
		reg.Cache = redisstore.NewModelCache(rdb, redisstore.ModelCacheTTL, logger)
	}
	ai.RegisterBuiltins(reg, ai.Endpoints{
		GeminiKey:         cfg.GeminiAPIKey,
		GeminiBaseURL:     cfg.GeminiBaseURL,
		OpenAIKey:         cfg.OpenAIAPIKey,
		OpenAIBaseURL:     cfg.OpenAIBaseURL,
		ClaudeKey:         cfg.ClaudeAPIKey,
		ClaudeBaseURL:     cfg.ClaudeBaseURL,
		GroqKey:           cfg.GroqAPIKey,
		GroqBaseURL:       cfg.GroqBaseURL,
		NvidiaKey:         cfg.NvidiaAPIKey,
		NvidiaBaseURL:     cfg.NvidiaBaseURL,
		OpenRouterKey:     cfg.OpenRouterAPIKey,
		OpenRouterBaseURL: cfg.OpenRouterBaseURL,
		OpenRouterSiteURL: cfg.OpenRouterSiteURL,
		AppName:           cfg.OpenRouterAppName,
		OllamaBaseURL:     cfg.OllamaBaseURL,
	})
	return reg
}

// newRepo seeds new users with the configured provider and its default model.
func newRepo(gdb *gorm.DB, reg *ai.Registry, cfg config.Config) (*chat.Repo, error) {
	info, ok := reg.Info(cfg.DefaultProvider)
	if !ok {
		return nil, fmt.Errorf("DEFAULT_PROVIDER=%q is not a registered provider", cfg.DefaultProvider)
	}
	return chat.NewRepo(gdb, info.Key, info.DefaultModel), nil
}
