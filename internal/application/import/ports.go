package importapp

import (
	"context"
	"time"

	"github.com/certhub/backend/internal/domain/dataset"
)

// BlobStore keeps raw uploads
type BlobStore interface {
	// Put stores data under a key derived from fileName and returns the key
	Put(ctx context.Context, fileName string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// IngestRecorder receives ingestion measurements. outcome is the terminal
// status of the version.
type IngestRecorder interface {
	RecordIngestion(ctx context.Context, outcome dataset.Status, records, suspicious int, duration time.Duration)
	RecordCommunityImport(ctx context.Context, imported, updated, failed int)
}

type noopRecorder struct{}

func (noopRecorder) RecordIngestion(context.Context, dataset.Status, int, int, time.Duration) {}

func (noopRecorder) RecordCommunityImport(context.Context, int, int, int) {}
