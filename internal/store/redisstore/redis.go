package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/qbot/internal/ai"
)

const ModelCacheTTL = time.Hour

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Ping checks connectivity with a short deadline.
func Ping(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return rdb.Ping(ctx).Err()
}

// RateLimiter is a fixed-window counter per user. A nil limiter or a zero
// limit allows everything.
type RateLimiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
	logger *slog.Logger
}

func NewRateLimiter(rdb *redis.Client, perMinute int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{rdb: rdb, limit: int64(perMinute), window: time.Minute, logger: logger}
}

// rateScript increments the window counter and arms its expiry in one atomic
// step. A counter left without a TTL gets one on the next call.
var rateScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Allow counts one request. Redis errors fail open.
func (l *RateLimiter) Allow(ctx context.Context, userID int64) bool {
	if l == nil || l.rdb == nil || l.limit <= 0 {
		return true
	}
	key := fmt.Sprintf("ratelimit:%d", userID)
	n, err := rateScript.Run(ctx, l.rdb, []string{key}, l.window.Milliseconds()).Int64()
	if err != nil {
		l.logger.Warn("rate limit check failed", "user_id", userID, "error", err)
		return true
	}
	return n <= l.limit
}

// ModelCache implements ai.ModelCache on top of Redis.
type ModelCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewModelCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *ModelCache {
	if ttl <= 0 {
		ttl = ModelCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelCache{rdb: rdb, ttl: ttl, logger: logger}
}

func modelsKey(provider string) string {
	return "models:" + provider
}

func (c *ModelCache) GetModels(ctx context.Context, provider string) ([]ai.Model, bool) {
	raw, err := c.rdb.Get(ctx, modelsKey(provider)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("model cache read failed", "provider", provider, "error", err)
		}
		return nil, false
	}
	var models []ai.Model
	if err := json.Unmarshal(raw, &models); err != nil {
		return nil, false
	}
	return models, true
}

func (c *ModelCache) SetModels(ctx context.Context, provider string, models []ai.Model) {
	raw, err := json.Marshal(models)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, modelsKey(provider), raw, c.ttl).Err(); err != nil {
		c.logger.Debug("model cache write failed", "provider", provider, "error", err)
	}
}
