package models

import (
	"time"

	"github.com/certhub/backend/internal/domain/community"
)

// CommunityModel is the persistence model of community.Community
type CommunityModel struct {
	Slug        string            `gorm:"type:varchar(255);primaryKey"`
	DisplayName string            `gorm:"type:varchar(255);not null"`
	Metadata    map[string]string `gorm:"serializer:json"`
	CreatedAt   time.Time         `gorm:"not null"`
	UpdatedAt   time.Time         `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CommunityModel) TableName() string {
	return "communities"
}

// ToDomain converts the model to a community.Community
func (m *CommunityModel) ToDomain() *community.Community {
	return &community.Community{
		Slug:        m.Slug,
		DisplayName: m.DisplayName,
		Metadata:    m.Metadata,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// CommunityModelFromDomain creates a model from a community.Community
func CommunityModelFromDomain(c *community.Community) *CommunityModel {
	return &CommunityModel{
		Slug:        c.Slug,
		DisplayName: c.DisplayName,
		Metadata:    c.Metadata,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
