// Package dataset tracks uploaded participant files. Every upload becomes a
// new Version; versions are kept for audit and switch-back.
package dataset

import (
	"fmt"
	"time"

	"github.com/certhub/backend/internal/domain/shared"
)

// Status represents the processing state of a version
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RowErrorDetail describes a row that was skipped during ingestion
type RowErrorDetail struct {
	Row     int    `json:"row"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stats summarizes a finished ingestion
type Stats struct {
	RecordCount      int
	SuspiciousCount  int
	SybilWalletCount int
	SkippedRows      int
	SynthesizedEmail int
	UntrustedDates   int
}

// Version is one uploaded participant file and the outcome of ingesting it
type Version struct {
	shared.BaseAggregateRoot
	FileName   string
	FileSize   int64
	UploadedBy string
	Checksum   string
	BlobKey    string
	Delimiter  string
	Status     Status
	Active     bool

	Stats
	ErrorDetails  []RowErrorDetail
	FailureReason string
	FailureCode   string
	CompletedAt   *time.Time
}

// NewVersion creates a version in processing state
func NewVersion(fileName string, fileSize int64, uploadedBy, checksum string, now time.Time) (*Version, error) {
	if fileName == "" {
		return nil, shared.NewDomainError("INVALID_FILE_NAME", "File name cannot be empty")
	}
	if fileSize < 0 {
		return nil, shared.NewDomainError("INVALID_FILE_SIZE", "File size cannot be negative")
	}
	return &Version{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		FileName:          fileName,
		FileSize:          fileSize,
		UploadedBy:        uploadedBy,
		Checksum:          checksum,
		Status:            StatusProcessing,
		ErrorDetails:      make([]RowErrorDetail, 0),
	}, nil
}

// AttachBlob records where the raw upload was stored
func (v *Version) AttachBlob(key string) {
	v.BlobKey = key
}

// Complete marks the ingestion as finished
func (v *Version) Complete(delimiter string, stats Stats, errors []RowErrorDetail, now time.Time) error {
	if v.Status != StatusProcessing {
		return invalidTransition("complete", v.Status)
	}
	if errors == nil {
		errors = make([]RowErrorDetail, 0)
	}
	v.Status = StatusCompleted
	v.Delimiter = delimiter
	v.Stats = stats
	v.ErrorDetails = errors
	v.finish(now)
	return nil
}

// Fail marks the ingestion as failed with the message shown to the uploader
func (v *Version) Fail(code, reason string, now time.Time) error {
	if v.Status.IsTerminal() {
		return invalidTransition("fail", v.Status)
	}
	v.Status = StatusFailed
	v.FailureCode = code
	v.FailureReason = reason
	v.finish(now)
	return nil
}

func (v *Version) finish(now time.Time) {
	v.CompletedAt = &now
	v.Touch(now)
	v.IncrementVersion()
}

// Activate makes this version the one served to readers
func (v *Version) Activate(now time.Time) error {
	if v.Status != StatusCompleted {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Only completed versions can be activated, version is %s", v.Status))
	}
	v.Active = true
	v.Touch(now)
	v.IncrementVersion()
	return nil
}

// Duration is the processing time, zero while processing
func (v *Version) Duration() time.Duration {
	if v.CompletedAt == nil {
		return 0
	}
	return v.CompletedAt.Sub(v.CreatedAt)
}

func invalidTransition(op string, from Status) error {
	return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot %s from state: %s", op, from))
}
