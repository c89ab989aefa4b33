package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/certhub/backend/internal/domain/dataset"
	"github.com/certhub/backend/internal/domain/participant"
)

// DatasetVersionModel is the persistence model of dataset.Version
type DatasetVersionModel struct {
	AggregateModel
	FileName         string                   `gorm:"type:varchar(255);not null"`
	FileSize         int64                    `gorm:"not null;default:0"`
	UploadedBy       string                   `gorm:"type:varchar(255);index"`
	Checksum         string                   `gorm:"type:varchar(64)"`
	BlobKey          string                   `gorm:"type:varchar(512)"`
	Delimiter        string                   `gorm:"type:varchar(16)"`
	Status           dataset.Status           `gorm:"type:varchar(20);not null;index"`
	Active           bool                     `gorm:"not null;default:false"`
	RecordCount      int                      `gorm:"not null;default:0"`
	SuspiciousCount  int                      `gorm:"not null;default:0"`
	SybilWalletCount int                      `gorm:"not null;default:0"`
	SkippedRows      int                      `gorm:"not null;default:0"`
	SynthesizedEmail int                      `gorm:"not null;default:0"`
	UntrustedDates   int                      `gorm:"not null;default:0"`
	ErrorDetails     []dataset.RowErrorDetail `gorm:"serializer:json"`
	FailureCode      string                   `gorm:"type:varchar(64)"`
	FailureReason    string                   `gorm:"type:text"`
	CompletedAt      *time.Time
}

// TableName returns the table name for GORM
func (DatasetVersionModel) TableName() string {
	return "dataset_versions"
}

// ToDomain converts the model to a dataset.Version
func (m *DatasetVersionModel) ToDomain() *dataset.Version {
	details := m.ErrorDetails
	if details == nil {
		details = make([]dataset.RowErrorDetail, 0)
	}
	return &dataset.Version{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		FileName:          m.FileName,
		FileSize:          m.FileSize,
		UploadedBy:        m.UploadedBy,
		Checksum:          m.Checksum,
		BlobKey:           m.BlobKey,
		Delimiter:         m.Delimiter,
		Status:            m.Status,
		Active:            m.Active,
		Stats: dataset.Stats{
			RecordCount:      m.RecordCount,
			SuspiciousCount:  m.SuspiciousCount,
			SybilWalletCount: m.SybilWalletCount,
			SkippedRows:      m.SkippedRows,
			SynthesizedEmail: m.SynthesizedEmail,
			UntrustedDates:   m.UntrustedDates,
		},
		ErrorDetails:  details,
		FailureCode:   m.FailureCode,
		FailureReason: m.FailureReason,
		CompletedAt:   m.CompletedAt,
	}
}

// DatasetVersionModelFromDomain creates a model from a dataset.Version
func DatasetVersionModelFromDomain(v *dataset.Version) *DatasetVersionModel {
	m := &DatasetVersionModel{
		FileName:         v.FileName,
		FileSize:         v.FileSize,
		UploadedBy:       v.UploadedBy,
		Checksum:         v.Checksum,
		BlobKey:          v.BlobKey,
		Delimiter:        v.Delimiter,
		Status:           v.Status,
		Active:           v.Active,
		RecordCount:      v.RecordCount,
		SuspiciousCount:  v.SuspiciousCount,
		SybilWalletCount: v.SybilWalletCount,
		SkippedRows:      v.SkippedRows,
		SynthesizedEmail: v.SynthesizedEmail,
		UntrustedDates:   v.UntrustedDates,
		ErrorDetails:     v.ErrorDetails,
		FailureCode:      v.FailureCode,
		FailureReason:    v.FailureReason,
		CompletedAt:      v.CompletedAt,
	}
	m.FromDomainAggregateRoot(v.BaseAggregateRoot)
	return m
}

// ParticipantRecordModel is one stored participant row. The key is the
// version and the source row number.
type ParticipantRecordModel struct {
	VersionID           uuid.UUID              `gorm:"type:uuid;primaryKey"`
	RowNumber           int                    `gorm:"primaryKey;autoIncrement:false"`
	Email               string                 `gorm:"type:varchar(320);not null;index"`
	EmailSynthesized    bool                   `gorm:"not null;default:false"`
	FirstName           string                 `gorm:"type:varchar(255)"`
	LastName            string                 `gorm:"type:varchar(255)"`
	Phone               string                 `gorm:"type:varchar(64)"`
	Country             string                 `gorm:"type:varchar(128)"`
	AcceptedMembership  bool                   `gorm:"not null;default:false"`
	AcceptedMarketing   bool                   `gorm:"not null;default:false"`
	WalletAddress       string                 `gorm:"type:varchar(255)"`
	PartnerCode         string                 `gorm:"type:varchar(128);index"`
	PercentageCompleted int                    `gorm:"not null;default:0"`
	FinalScore          int                    `gorm:"not null;default:0"`
	FinalGrade          participant.Grade      `gorm:"type:varchar(16)"`
	CreatedAt           time.Time              `gorm:"autoCreateTime:false"`
	CreatedAtStatus     participant.DateStatus `gorm:"type:varchar(16)"`
	CompletedAt         *time.Time
	CompletedAtStatus   participant.DateStatus `gorm:"type:varchar(16)"`
	CAStatus            string                 `gorm:"column:ca_status;type:varchar(128)"`
	IsSuspicious        bool                   `gorm:"not null;default:false;index"`
	SuspicionReason     string                 `gorm:"type:text"`
	RiskScore           int                    `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ParticipantRecordModel) TableName() string {
	return "participant_records"
}

// ToDomain converts the model to a participant.Record
func (m *ParticipantRecordModel) ToDomain() participant.Record {
	return participant.Record{
		RowNumber:           m.RowNumber,
		Email:               m.Email,
		EmailSynthesized:    m.EmailSynthesized,
		FirstName:           m.FirstName,
		LastName:            m.LastName,
		Phone:               m.Phone,
		Country:             m.Country,
		AcceptedMembership:  m.AcceptedMembership,
		AcceptedMarketing:   m.AcceptedMarketing,
		WalletAddress:       m.WalletAddress,
		PartnerCode:         m.PartnerCode,
		PercentageCompleted: m.PercentageCompleted,
		FinalScore:          m.FinalScore,
		FinalGrade:          m.FinalGrade,
		CreatedAt:           m.CreatedAt,
		CreatedAtStatus:     m.CreatedAtStatus,
		CompletedAt:         m.CompletedAt,
		CompletedAtStatus:   m.CompletedAtStatus,
		CAStatus:            m.CAStatus,
		Assessment: participant.Assessment{
			IsSuspicious:    m.IsSuspicious,
			SuspicionReason: m.SuspicionReason,
			RiskScore:       m.RiskScore,
		},
	}
}

// ParticipantRecordModelFromDomain creates a model for r stored under versionID
func ParticipantRecordModelFromDomain(versionID uuid.UUID, r participant.Record) ParticipantRecordModel {
	return ParticipantRecordModel{
		VersionID:           versionID,
		RowNumber:           r.RowNumber,
		Email:               r.Email,
		EmailSynthesized:    r.EmailSynthesized,
		FirstName:           r.FirstName,
		LastName:            r.LastName,
		Phone:               r.Phone,
		Country:             r.Country,
		AcceptedMembership:  r.AcceptedMembership,
		AcceptedMarketing:   r.AcceptedMarketing,
		WalletAddress:       r.WalletAddress,
		PartnerCode:         r.PartnerCode,
		PercentageCompleted: r.PercentageCompleted,
		FinalScore:          r.FinalScore,
		FinalGrade:          r.FinalGrade,
		CreatedAt:           r.CreatedAt,
		CreatedAtStatus:     r.CreatedAtStatus,
		CompletedAt:         r.CompletedAt,
		CompletedAtStatus:   r.CompletedAtStatus,
		CAStatus:            r.CAStatus,
		IsSuspicious:        r.IsSuspicious,
		SuspicionReason:     r.SuspicionReason,
		RiskScore:           r.RiskScore,
	}
}
