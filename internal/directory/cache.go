package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bookflow/internal/constants"
	"bookflow/internal/logger"
	"bookflow/pkg/metrics"
	"bookflow/pkg/models"
)

var errCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return val, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// CachedSource is a read-through cache in front of another Source. Cache failures
// degrade to the underlying source.
type CachedSource struct {
	cache  Cache
	next   Source
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedSource(cache Cache, next Source, ttl time.Duration, log logger.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = time.Duration(constants.DefaultDirectoryTTLSeconds) * time.Second
	}
	return &CachedSource{cache: cache, next: next, ttl: ttl, logger: log}
}

func (s *CachedSource) Lookup(ctx context.Context, organizerID string) (*models.Organizer, error) {
	key := constants.CacheKeyPrefixOrganizer + organizerID

	start := time.Now()
	raw, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var org models.Organizer
		if jsonErr := json.Unmarshal([]byte(raw), &org); jsonErr == nil {
			metrics.ObserveDirectoryLookup(constants.SourceRedis, "hit", time.Since(start))
			return &org, nil
		}
		s.logger.WarnwCtx(ctx, "Discarding malformed organizer cache entry", "key", key)
	case errors.Is(err, errCacheMiss):
		metrics.ObserveDirectoryLookup(constants.SourceRedis, "miss", time.Since(start))
	default:
		metrics.ObserveDirectoryLookup(constants.SourceRedis, "error", time.Since(start))
		s.logger.WarnwCtx(ctx, "Organizer cache unavailable", "error", err)
	}

	org, err := s.next.Lookup(ctx, organizerID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(org); err == nil {
		if err := s.cache.Set(ctx, key, string(data), s.ttl); err != nil {
			s.logger.DebugwCtx(ctx, "Failed to cache organizer", "key", key, "error", err)
		}
	}
	return org, nil
}
