package dataset

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Stage is the ingestion step a version is in
type Stage string

const (
	StageQueued  Stage = "queued"
	StageParsing Stage = "parsing"
	StageSaving  Stage = "saving"
	StageDone    Stage = "done"
	StageFailed  Stage = "failed"
)

// Progress is the live state of an ingestion, kept outside the database
type Progress struct {
	VersionID uuid.UUID `json:"version_id"`
	Stage     Stage     `json:"stage"`
	Percent   int       `json:"percent"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressStore holds the latest Progress per version. Entries expire.
type ProgressStore interface {
	Set(ctx context.Context, p Progress) error
	// Get returns shared.ErrNotFound when nothing is stored for id
	Get(ctx context.Context, id uuid.UUID) (*Progress, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
