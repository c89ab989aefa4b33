// Package cache keeps short-lived ingestion state outside the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/certhub/backend/internal/domain/dataset"
	"github.com/certhub/backend/internal/domain/shared"
	"github.com/certhub/backend/internal/infrastructure/config"
)

const (
	defaultProgressPrefix = "certhub:progress:"
	defaultProgressTTL    = time.Hour
	pingTimeout           = 5 * time.Second
)

// RedisProgressStore implements dataset.ProgressStore on Redis. Each entry is
// a JSON document under "<prefix><version id>" with a TTL.
type RedisProgressStore struct {
	client    redis.Cmdable
	keyPrefix string
	ttl       time.Duration
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisProgressStore creates a store on client. Zero ttl and empty prefix
// select the defaults.
func NewRedisProgressStore(client redis.Cmdable, keyPrefix string, ttl time.Duration) *RedisProgressStore {
	if keyPrefix == "" {
		keyPrefix = defaultProgressPrefix
	}
	if ttl <= 0 {
		ttl = defaultProgressTTL
	}
	return &RedisProgressStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (s *RedisProgressStore) key(id uuid.UUID) string {
	return s.keyPrefix + id.String()
}

// Set stores p and resets its TTL
func (s *RedisProgressStore) Set(ctx context.Context, p dataset.Progress) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	if err := s.client.Set(ctx, s.key(p.VersionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store progress: %w", err)
	}
	return nil
}

// Get returns shared.ErrNotFound for a missing or expired entry
func (s *RedisProgressStore) Get(ctx context.Context, id uuid.UUID) (*dataset.Progress, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress: %w", err)
	}

	var p dataset.Progress
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	return &p, nil
}

// Delete removes the entry for id
func (s *RedisProgressStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}

var _ dataset.ProgressStore = (*RedisProgressStore)(nil)
