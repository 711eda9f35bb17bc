// Package cache provides Redis caching for document annotation sets.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/config"
	"github.com/pdf-annotator/backend/internal/models"
)

const (
	// Cache key prefix; one entry per document holds its whole sequence.
	annotationsKeyPrefix = "doc:annotations:"

	// Default TTL for cached items
	defaultTTL = 5 * time.Minute
)

// Cache defines the caching operations for annotation collections. The
// cache is best effort: every error path degrades to a miss so storage
// stays authoritative.
type Cache interface {
	// Get retrieves a document's cached annotation sequence.
	Get(ctx context.Context, documentID string) ([]models.Annotation, bool, error)

	// Set stores a document's annotation sequence.
	Set(ctx context.Context, documentID string, annotations []models.Annotation) error

	// Invalidate removes a document's cached sequence.
	Invalidate(ctx context.Context, documentID string) error

	// Close closes the cache connection.
	Close() error
}

// RedisCache implements Cache using Redis.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(cfg *config.Config, logger *zap.Logger) (Cache, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis cache")

	return &RedisCache{
		client: client,
		logger: logger,
		ttl:    defaultTTL,
	}, nil
}

// Get retrieves a document's cached annotation sequence.
func (c *RedisCache) Get(ctx context.Context, documentID string) ([]models.Annotation, bool, error) {
	key := annotationsKeyPrefix + documentID

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil // Cache miss
	}
	if err != nil {
		c.logger.Warn("Failed to get from cache", zap.String("key", key), zap.Error(err))
		return nil, false, nil // Treat errors as cache miss
	}

	var annotations []models.Annotation
	if err := json.Unmarshal(data, &annotations); err != nil {
		c.logger.Warn("Failed to unmarshal cached annotations", zap.Error(err))
		return nil, false, nil
	}

	c.logger.Debug("Cache hit", zap.String("key", key))
	return annotations, true, nil
}

// Set stores a document's annotation sequence.
func (c *RedisCache) Set(ctx context.Context, documentID string, annotations []models.Annotation) error {
	key := annotationsKeyPrefix + documentID

	if annotations == nil {
		annotations = []models.Annotation{}
	}
	data, err := json.Marshal(annotations)
	if err != nil {
		c.logger.Warn("Failed to marshal annotations for cache", zap.Error(err))
		return err
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to set cache", zap.String("key", key), zap.Error(err))
		return err
	}

	c.logger.Debug("Cached annotations", zap.String("key", key), zap.Int("count", len(annotations)))
	return nil
}

// Invalidate removes a document's cached sequence.
func (c *RedisCache) Invalidate(ctx context.Context, documentID string) error {
	key := annotationsKeyPrefix + documentID

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("Failed to invalidate cache", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	c.logger.Info("Closing Redis connection")
	return c.client.Close()
}

// NoopCache implements Cache without storing anything. Used when no
// Redis URL is configured (e.g. with the in-memory storage backend).
type NoopCache struct{}

// NewNoopCache returns a cache that always misses.
func NewNoopCache() Cache { return NoopCache{} }

func (NoopCache) Get(context.Context, string) ([]models.Annotation, bool, error) {
	return nil, false, nil
}
func (NoopCache) Set(context.Context, string, []models.Annotation) error { return nil }
func (NoopCache) Invalidate(context.Context, string) error               { return nil }
func (NoopCache) Close() error                                           { return nil }
