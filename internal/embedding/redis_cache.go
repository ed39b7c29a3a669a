package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/librarian/internal/vector"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache stores embeddings in Redis as little-endian float32 blobs.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedisClient parses url (redis://...) and returns a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// NewRedisCache creates a cache on client. A non-positive ttlSeconds means one day.
func NewRedisCache(client *redis.Client, ttlSeconds int, logger *zap.Logger) *RedisCache {
	ttl := 24 * time.Hour
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "librarian:emb:", logger: logger}
}

// Get returns the embedding under key. Errors are logged and reported as misses.
func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("redis embedding cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	vec, err := vector.DecodeEmbedding(data)
	if err != nil || len(vec) == 0 {
		c.logger.Warn("discarding malformed cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

// Set writes the embedding under key.
func (c *RedisCache) Set(ctx context.Context, key string, emb []float32) {
	if err := c.client.Set(ctx, c.prefix+key, vector.EncodeEmbedding(emb), c.ttl).Err(); err != nil {
		c.logger.Warn("redis embedding cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear deletes every embedding under the cache prefix and returns the number of keys removed.
func (c *RedisCache) Clear(ctx context.Context) (int, error) {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan embedding cache: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("delete embedding cache: %w", err)
	}
	return len(keys), nil
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
