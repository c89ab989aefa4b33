package dataset

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/certhub/backend/internal/domain/participant"
)

// Filter narrows version listings
type Filter struct {
	Status       *Status
	UploadedBy   string
	UploadedFrom *time.Time
	UploadedTo   *time.Time
}

// RecordFilter narrows record listings of one version
type RecordFilter struct {
	SuspiciousOnly bool
	PartnerCode    string
	Search         string // matched against email and names
}

// ListResult is a page of versions, newest first
type ListResult struct {
	Items      []*Version
	TotalCount int64
	Page       int
	PageSize   int
}

// Repository persists versions and their records
type Repository interface {
	// FindByID returns shared.ErrNotFound when absent
	FindByID(ctx context.Context, id uuid.UUID) (*Version, error)
	// FindAll lists versions newest first
	FindAll(ctx context.Context, filter Filter, page, pageSize int) (*ListResult, error)
	// FindActive returns the active version or shared.ErrNotFound
	FindActive(ctx context.Context) (*Version, error)
	// Save creates or updates a version
	Save(ctx context.Context, v *Version) error
	// SaveWithRecords stores the records and the version in one transaction
	SaveWithRecords(ctx context.Context, v *Version, records []participant.Record) error
	// Activate flags id as the only active version
	Activate(ctx context.Context, id uuid.UUID, now time.Time) (*Version, error)
	// Delete removes the version and its records
	Delete(ctx context.Context, id uuid.UUID) error
	// FindRecords pages through the records of a version in row order
	FindRecords(ctx context.Context, id uuid.UUID, filter RecordFilter, page, pageSize int) ([]participant.Record, int64, error)
}
