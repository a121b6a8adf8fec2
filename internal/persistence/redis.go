package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unionhall/triage-service/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects when an address is configured; otherwise the cache is
// disabled and reads go straight to the repository.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Redis, error) {
	if cfg.Addr == "" {
		logger.Warn("REDIS_ADDR not provided; redacted-view cache disabled")
		return &Redis{Client: nil}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("connected to redis")
	return &Redis{Client: client}, nil
}

// Ping verifies the redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Ping(ctx).Err()
}

// Close releases the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// RedactedViewCache holds redacted ticket text keyed by ticket ID. Raw text
// never enters the cache.
type RedactedViewCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedactedViewCache builds the cache; a nil client makes every lookup a
// miss.
func NewRedactedViewCache(r *Redis, ttlSec int) *RedactedViewCache {
	var client *redis.Client
	if r != nil {
		client = r.Client
	}
	if ttlSec <= 0 {
		ttlSec = 300
	}
	return &RedactedViewCache{client: client, ttl: time.Duration(ttlSec) * time.Second}
}

func cacheKey(ticketID string) string {
	return "triage:redacted:" + ticketID
}

// GetRedacted returns the cached redacted text, or ok=false on a miss.
func (c *RedactedViewCache) GetRedacted(ctx context.Context, ticketID string) (string, bool, error) {
	if c == nil || c.client == nil {
		return "", false, nil
	}
	text, err := c.client.Get(ctx, cacheKey(ticketID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return text, true, nil
}

// SetRedacted stores the redacted text with the configured TTL.
func (c *RedactedViewCache) SetRedacted(ctx context.Context, ticketID, redacted string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, cacheKey(ticketID), redacted, c.ttl).Err()
}
