package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Alan934/taller-charli-sub000/internal/config"
	"github.com/redis/go-redis/v9"
)

// DraftCacheRepository stores persisted booking drafts in Redis. Keys expire after
// the configured TTL, so no purge job is needed for this backend.
type DraftCacheRepository struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisClient opens a client and checks the server answers
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewDraftCacheRepository creates a new Redis draft repository. ttl <= 0 keeps keys forever.
func NewDraftCacheRepository(client redis.Cmdable, ttl time.Duration) *DraftCacheRepository {
	if ttl < 0 {
		ttl = 0
	}
	return &DraftCacheRepository{client: client, ttl: ttl}
}

// Get returns the stored payload for key. A missing key is not an error.
func (r *DraftCacheRepository) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get draft: %w", err)
	}
	return value, true, nil
}

// Set writes the payload and refreshes its expiry
func (r *DraftCacheRepository) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Delete removes the payload for key
func (r *DraftCacheRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// Ping checks the server is reachable
func (r *DraftCacheRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
