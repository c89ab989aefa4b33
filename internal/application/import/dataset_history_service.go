package importapp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/certhub/backend/internal/domain/dataset"
	"github.com/certhub/backend/internal/domain/participant"
	"github.com/certhub/backend/internal/domain/shared"
	csvimport "github.com/certhub/backend/internal/infrastructure/import"
)

// ListVersionsFilter holds string filters from the API layer
type ListVersionsFilter struct {
	Status       string
	UploadedBy   string
	UploadedFrom *time.Time
	UploadedTo   *time.Time
}

// ErrNoRowErrors is returned when an errors export is requested for a clean version
var ErrNoRowErrors = shared.NewDomainError("NO_ROW_ERRORS", "Dataset version has no row errors to export")

// DatasetHistoryService reads and manages stored dataset versions
type DatasetHistoryService struct {
	repo     dataset.Repository
	blobs    BlobStore
	progress dataset.ProgressStore
	logger   *zap.Logger
	clock    shared.Clock
}

// NewDatasetHistoryService creates a new DatasetHistoryService
func NewDatasetHistoryService(
	repo dataset.Repository,
	blobs BlobStore,
	progress dataset.ProgressStore,
	opts ...ServiceOption,
) *DatasetHistoryService {
	o := buildOptions(opts)
	return &DatasetHistoryService{
		repo:     repo,
		blobs:    blobs,
		progress: progress,
		logger:   o.logger,
		clock:    o.clock,
	}
}

// ListVersions retrieves versions newest first
func (s *DatasetHistoryService) ListVersions(
	ctx context.Context,
	filter ListVersionsFilter,
	page, pageSize int,
) (*dataset.ListResult, error) {
	repoFilter := dataset.Filter{
		UploadedBy:   filter.UploadedBy,
		UploadedFrom: filter.UploadedFrom,
		UploadedTo:   filter.UploadedTo,
	}
	if filter.Status != "" {
		status := dataset.Status(filter.Status)
		if status.IsValid() {
			repoFilter.Status = &status
		}
	}

	page, pageSize = shared.NormalizePage(page, pageSize)
	return s.repo.FindAll(ctx, repoFilter, page, pageSize)
}

// GetVersion retrieves one version
func (s *DatasetHistoryService) GetVersion(ctx context.Context, id uuid.UUID) (*dataset.Version, error) {
	return s.repo.FindByID(ctx, id)
}

// GetActive retrieves the version currently served to readers
func (s *DatasetHistoryService) GetActive(ctx context.Context) (*dataset.Version, error) {
	return s.repo.FindActive(ctx)
}

// ActivateVersion makes a completed version the active one
func (s *DatasetHistoryService) ActivateVersion(ctx context.Context, id uuid.UUID) (*dataset.Version, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.Activate(s.clock()); err != nil {
		return nil, err
	}

	activated, err := s.repo.Activate(ctx, id, s.clock())
	if err != nil {
		return nil, fmt.Errorf("failed to activate dataset version: %w", err)
	}
	s.logger.Info("Dataset version activated", zap.String("dataset_id", id.String()))
	return activated, nil
}

// DeleteVersion removes a finished version, its records and its upload
func (s *DatasetHistoryService) DeleteVersion(ctx context.Context, id uuid.UUID) error {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !v.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Cannot delete a dataset version that is still processing")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete dataset version: %w", err)
	}

	if v.BlobKey != "" {
		if err := s.blobs.Delete(ctx, v.BlobKey); err != nil {
			s.logger.Warn("Failed to delete dataset upload",
				zap.String("dataset_id", id.String()),
				zap.String("key", v.BlobKey),
				zap.Error(err),
			)
		}
	}
	if s.progress != nil {
		if err := s.progress.Delete(ctx, id); err != nil {
			s.logger.Debug("Failed to clear dataset progress", zap.String("dataset_id", id.String()), zap.Error(err))
		}
	}
	return nil
}

// ListRecords pages through the records of one version
func (s *DatasetHistoryService) ListRecords(
	ctx context.Context,
	id uuid.UUID,
	filter dataset.RecordFilter,
	page, pageSize int,
) (shared.Paginated[participant.Record], error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return shared.Paginated[participant.Record]{}, err
	}

	page, pageSize = shared.NormalizePage(page, pageSize)
	records, total, err := s.repo.FindRecords(ctx, id, filter, page, pageSize)
	if err != nil {
		return shared.Paginated[participant.Record]{}, fmt.Errorf("failed to list records: %w", err)
	}
	return shared.NewPaginated(records, total, page, pageSize), nil
}

// GetErrorsCSV renders the skipped rows of a version for download. It
// returns the content and a file name.
func (s *DatasetHistoryService) GetErrorsCSV(ctx context.Context, id uuid.UUID) (string, string, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", "", err
	}
	if len(v.ErrorDetails) == 0 {
		return "", "", ErrNoRowErrors
	}

	tokenizer := csvimport.NewTokenizer(',')
	var sb strings.Builder
	sb.WriteString(tokenizer.Join([]string{"Row", "Error Code", "Error Message"}))
	sb.WriteByte('\n')
	for _, e := range v.ErrorDetails {
		sb.WriteString(tokenizer.Join([]string{strconv.Itoa(e.Row), e.Code, e.Message}))
		sb.WriteByte('\n')
	}

	fileName := fmt.Sprintf("dataset_errors_%s.csv", v.ID.String()[:8])
	return sb.String(), fileName, nil
}

// GetProgress returns live progress, or a snapshot derived from the stored
// version once the live entry has expired.
func (s *DatasetHistoryService) GetProgress(ctx context.Context, id uuid.UUID) (*dataset.Progress, error) {
	if s.progress != nil {
		p, err := s.progress.Get(ctx, id)
		if err == nil {
			return p, nil
		}
		if !shared.IsNotFound(err) {
			s.logger.Debug("Progress store lookup failed", zap.String("dataset_id", id.String()), zap.Error(err))
		}
	}

	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return progressOf(v), nil
}

func progressOf(v *dataset.Version) *dataset.Progress {
	p := &dataset.Progress{VersionID: v.ID, UpdatedAt: v.UpdatedAt}
	switch v.Status {
	case dataset.StatusCompleted:
		p.Stage, p.Percent = dataset.StageDone, 100
	case dataset.StatusFailed:
		p.Stage, p.Message = dataset.StageFailed, v.FailureReason
	default:
		p.Stage = dataset.StageQueued
	}
	return p
}
