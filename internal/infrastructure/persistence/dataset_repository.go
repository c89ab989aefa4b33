package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/certhub/backend/internal/domain/dataset"
	"github.com/certhub/backend/internal/domain/participant"
	"github.com/certhub/backend/internal/domain/shared"
	"github.com/certhub/backend/internal/infrastructure/persistence/models"
)

// recordBatchSize bounds the rows of one INSERT when storing participant records
const recordBatchSize = 500

// GormDatasetRepository implements dataset.Repository using GORM
type GormDatasetRepository struct {
	db *gorm.DB
}

// NewGormDatasetRepository creates a new GormDatasetRepository
func NewGormDatasetRepository(db *gorm.DB) *GormDatasetRepository {
	return &GormDatasetRepository{db: db}
}

// FindByID finds a dataset version by its ID
func (r *GormDatasetRepository) FindByID(ctx context.Context, id uuid.UUID) (*dataset.Version, error) {
	return findVersion(r.db.WithContext(ctx), id)
}

// FindAll lists versions matching filter, newest first
func (r *GormDatasetRepository) FindAll(ctx context.Context, filter dataset.Filter, page, pageSize int) (*dataset.ListResult, error) {
	page, pageSize = shared.NormalizePage(page, pageSize)
	query := r.db.WithContext(ctx).Model(&models.DatasetVersionModel{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.UploadedBy != "" {
		query = query.Where("uploaded_by = ?", filter.UploadedBy)
	}
	if filter.UploadedFrom != nil {
		query = query.Where("created_at >= ?", *filter.UploadedFrom)
	}
	if filter.UploadedTo != nil {
		query = query.Where("created_at <= ?", *filter.UploadedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []models.DatasetVersionModel
	if err := query.Order("created_at DESC").
		Offset(shared.Offset(page, pageSize)).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]*dataset.Version, len(rows))
	for i := range rows {
		items[i] = rows[i].ToDomain()
	}
	return &dataset.ListResult{Items: items, TotalCount: total, Page: page, PageSize: pageSize}, nil
}

// FindActive returns the active version, or shared.ErrNotFound when none is
func (r *GormDatasetRepository) FindActive(ctx context.Context) (*dataset.Version, error) {
	var m models.DatasetVersionModel
	if err := r.db.WithContext(ctx).Where("active = ?", true).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.ToDomain(), nil
}

// Save inserts or updates the version row
func (r *GormDatasetRepository) Save(ctx context.Context, v *dataset.Version) error {
	return r.db.WithContext(ctx).Save(models.DatasetVersionModelFromDomain(v)).Error
}

// SaveWithRecords writes the version and replaces its records in one
// transaction.
func (r *GormDatasetRepository) SaveWithRecords(ctx context.Context, v *dataset.Version, records []participant.Record) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(models.DatasetVersionModelFromDomain(v)).Error; err != nil {
			return err
		}
		if err := tx.Where("version_id = ?", v.ID).Delete(&models.ParticipantRecordModel{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		rows := make([]models.ParticipantRecordModel, len(records))
		for i, rec := range records {
			rows[i] = models.ParticipantRecordModelFromDomain(v.ID, rec)
		}
		return tx.CreateInBatches(rows, recordBatchSize).Error
	})
}

// Activate makes id the only active version and returns it reloaded
func (r *GormDatasetRepository) Activate(ctx context.Context, id uuid.UUID, now time.Time) (*dataset.Version, error) {
	var activated *dataset.Version
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findVersion(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&models.DatasetVersionModel{}).
			Where("active = ? AND id <> ?", true, id).
			Updates(map[string]any{"active": false, "updated_at": now}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.DatasetVersionModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"active":     true,
				"updated_at": now,
				"version":    gorm.Expr("version + 1"),
			}).Error; err != nil {
			return err
		}
		v, err := findVersion(tx, id)
		activated = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return activated, nil
}

// Delete removes the version and its records
func (r *GormDatasetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("version_id = ?", id).Delete(&models.ParticipantRecordModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.DatasetVersionModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// FindRecords pages through the records of a version in source row order
func (r *GormDatasetRepository) FindRecords(ctx context.Context, id uuid.UUID, filter dataset.RecordFilter, page, pageSize int) ([]participant.Record, int64, error) {
	page, pageSize = shared.NormalizePage(page, pageSize)
	query := r.db.WithContext(ctx).Model(&models.ParticipantRecordModel{}).Where("version_id = ?", id)
	if filter.SuspiciousOnly {
		query = query.Where("is_suspicious = ?", true)
	}
	if filter.PartnerCode != "" {
		query = query.Where("partner_code = ?", filter.PartnerCode)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?",
			pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ParticipantRecordModel
	if err := query.Order("row_number ASC").
		Offset(shared.Offset(page, pageSize)).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	records := make([]participant.Record, len(rows))
	for i := range rows {
		records[i] = rows[i].ToDomain()
	}
	return records, total, nil
}

func findVersion(db *gorm.DB, id uuid.UUID) (*dataset.Version, error) {
	var m models.DatasetVersionModel
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.ToDomain(), nil
}

// translate maps gorm's not-found error to shared.ErrNotFound
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

var _ dataset.Repository = (*GormDatasetRepository)(nil)
