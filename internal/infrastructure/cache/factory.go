package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/certhub/backend/internal/domain/dataset"
	"github.com/certhub/backend/internal/infrastructure/config"
)

// ProgressStoreFactory picks the progress store for the deployment
type ProgressStoreFactory struct {
	redisConfig           config.RedisConfig
	ttl                   time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
	client                *redis.Client
}

// FactoryOption configures a ProgressStoreFactory
type FactoryOption func(*ProgressStoreFactory)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *ProgressStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory store. Fallback is on by default.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *ProgressStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewProgressStoreFactory creates a factory
func NewProgressStoreFactory(cfg config.RedisConfig, ttl time.Duration, opts ...FactoryOption) *ProgressStoreFactory {
	f := &ProgressStoreFactory{
		redisConfig:           cfg,
		ttl:                   ttl,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns a Redis store when Redis is configured and reachable,
// otherwise an in-memory store. The returned closer releases the store.
func (f *ProgressStoreFactory) CreateStore(ctx context.Context) (dataset.ProgressStore, io.Closer, error) {
	if f.redisConfig.Host == "" {
		f.logger.Info("Redis not configured, using in-memory progress store")
		s := NewInMemoryProgressStore(f.ttl)
		return s, s, nil
	}

	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis progress store", zap.String("addr", f.redisConfig.Addr()))
		f.client = client
		return NewRedisProgressStore(client, "", f.ttl), client, nil
	}
	if !f.allowInMemoryFallback {
		return nil, nil, fmt.Errorf("redis required for progress tracking but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory progress store. "+
		"Progress is not shared between instances.", zap.Error(err))
	s := NewInMemoryProgressStore(f.ttl)
	return s, s, nil
}

// RedisClient returns the client opened by CreateStore, or nil when the
// store is in memory. The client is closed by CreateStore's closer.
func (f *ProgressStoreFactory) RedisClient() *redis.Client {
	return f.client
}
