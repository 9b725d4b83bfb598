package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jahboukie/ndarite/internal/config"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache wraps the redis client. A nil client (no REDIS_ADDR, or the ping
// failed at startup) turns every operation into a no-op miss, so the
// application never depends on redis being up.
type Cache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewCache(cfg config.RedisConfig, logger *zap.Logger) *Cache {
	log := logger.With(zap.String("service", "cache"))

	if cfg.Addr == "" {
		log.Warn("REDIS_ADDR not set, caching disabled")
		return &Cache{logger: log}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Could not connect to redis, caching disabled", zap.Error(err))
		return &Cache{logger: log}
	}

	log.Info("Redis connected", zap.String("addr", cfg.Addr))
	return &Cache{rdb: rdb, logger: log}
}

func (c *Cache) Enabled() bool {
	return c.rdb != nil
}

func (c *Cache) GetJSON(ctx context.Context, key string, dest any) error {
	if c.rdb == nil {
		return ErrCacheMiss
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c.rdb == nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Cache delete failed", zap.Error(err))
	}
}

// CountWindow increments a fixed-window counter and returns the new count.
// The window TTL is set on first increment.
func (c *Cache) CountWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	if c.rdb == nil {
		return 0, ErrCacheMiss
	}
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		c.rdb.Expire(ctx, key, window)
	}
	return count, nil
}

func (c *Cache) Close() {
	if c.rdb != nil {
		c.rdb.Close()
	}
}
