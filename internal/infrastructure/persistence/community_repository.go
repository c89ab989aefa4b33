package persistence

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/certhub/backend/internal/domain/community"
	"github.com/certhub/backend/internal/domain/shared"
	"github.com/certhub/backend/internal/infrastructure/persistence/models"
)

// GormCommunityRepository implements community.Repository using GORM
type GormCommunityRepository struct {
	db *gorm.DB
}

// NewGormCommunityRepository creates a new GormCommunityRepository
func NewGormCommunityRepository(db *gorm.DB) *GormCommunityRepository {
	return &GormCommunityRepository{db: db}
}

// ExistingSlugs returns every stored slug
func (r *GormCommunityRepository) ExistingSlugs(ctx context.Context) (map[string]struct{}, error) {
	var slugs []string
	if err := r.db.WithContext(ctx).Model(&models.CommunityModel{}).Pluck("slug", &slugs).Error; err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		set[s] = struct{}{}
	}
	return set, nil
}

// SaveBatch inserts creates, then overwrites the imported fields of the rows
// named by updates. An update whose slug is not stored is inserted.
func (r *GormCommunityRepository) SaveBatch(ctx context.Context, creates, updates []*community.Community) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range creates {
			if err := tx.Create(models.CommunityModelFromDomain(c)).Error; err != nil {
				return err
			}
		}
		for _, u := range updates {
			var m models.CommunityModel
			err := tx.Where("slug = ?", u.Slug).First(&m).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					if err := tx.Create(models.CommunityModelFromDomain(u)).Error; err != nil {
						return err
					}
					continue
				}
				return err
			}
			stored := m.ToDomain()
			stored.ApplyImport(u, u.UpdatedAt)
			if err := tx.Save(models.CommunityModelFromDomain(stored)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindAll lists communities ordered by display name. search matches slug
// and display name case-insensitively.
func (r *GormCommunityRepository) FindAll(ctx context.Context, search string, page, pageSize int) ([]*community.Community, int64, error) {
	page, pageSize = shared.NormalizePage(page, pageSize)
	query := r.db.WithContext(ctx).Model(&models.CommunityModel{})
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(display_name) LIKE ? OR slug LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.CommunityModel
	if err := query.Order("display_name ASC").
		Offset(shared.Offset(page, pageSize)).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	items := make([]*community.Community, len(rows))
	for i := range rows {
		items[i] = rows[i].ToDomain()
	}
	return items, total, nil
}

// FindBySlug returns shared.ErrNotFound when absent
func (r *GormCommunityRepository) FindBySlug(ctx context.Context, slug string) (*community.Community, error) {
	var m models.CommunityModel
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.ToDomain(), nil
}

var _ community.Repository = (*GormCommunityRepository)(nil)
