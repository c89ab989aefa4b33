package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/certhub/backend/internal/infrastructure/config"
)

// Store is a blob store that can also read objects back
type Store interface {
	Put(ctx context.Context, fileName string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by cfg.Driver. The S3 bucket is created when
// missing.
func New(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		logger.Warn("Using in-memory blob store, uploads are lost on restart")
		return NewMemoryBlobStore(cfg.KeyPrefix), nil
	case "s3":
		s, err := NewS3BlobStore(cfg, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		logger.Info("S3 blob store ready", zap.String("bucket", s.Bucket()))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
