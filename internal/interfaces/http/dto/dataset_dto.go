package dto

import (
	"time"

	"github.com/araddon/dateparse"

	importapp "github.com/certhub/backend/internal/application/import"
	"github.com/certhub/backend/internal/domain/dataset"
	csvimport "github.com/certhub/backend/internal/infrastructure/import"
)

// ListDatasetsRequest binds the version listing query
type ListDatasetsRequest struct {
	ListRequest
	Status       string `form:"status" binding:"omitempty,oneof=processing completed failed"`
	UploadedBy   string `form:"uploaded_by" binding:"omitempty,max=200"`
	UploadedFrom string `form:"uploaded_from"`
	UploadedTo   string `form:"uploaded_to"`
}

// Filter converts the query into a service filter. Unparseable dates are
// ignored; a date-only upper bound covers the whole day.
func (r ListDatasetsRequest) Filter() importapp.ListVersionsFilter {
	filter := importapp.ListVersionsFilter{
		Status:     r.Status,
		UploadedBy: r.UploadedBy,
	}
	if t, ok := parseQueryDate(r.UploadedFrom); ok {
		filter.UploadedFrom = &t
	}
	if t, ok := parseQueryDate(r.UploadedTo); ok {
		if len(r.UploadedTo) == len(time.DateOnly) {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		filter.UploadedTo = &t
	}
	return filter
}

func parseQueryDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ListRecordsRequest binds the record listing query
type ListRecordsRequest struct {
	ListRequest
	SuspiciousOnly bool   `form:"suspicious_only"`
	PartnerCode    string `form:"partner_code" binding:"omitempty,max=100"`
}

// Filter converts the query into a repository filter
func (r ListRecordsRequest) Filter() dataset.RecordFilter {
	return dataset.RecordFilter{
		SuspiciousOnly: r.SuspiciousOnly,
		PartnerCode:    r.PartnerCode,
		Search:         r.Search,
	}
}

// DatasetStatsResponse summarizes a finished ingestion
type DatasetStatsResponse struct {
	RecordCount       int `json:"record_count"`
	SuspiciousCount   int `json:"suspicious_count"`
	SybilWalletCount  int `json:"sybil_wallet_count"`
	SkippedRows       int `json:"skipped_rows"`
	SynthesizedEmails int `json:"synthesized_emails"`
	UntrustedDates    int `json:"untrusted_dates"`
}

// DatasetVersionResponse is one dataset version
type DatasetVersionResponse struct {
	ID            string               `json:"id"`
	FileName      string               `json:"file_name"`
	FileSize      int64                `json:"file_size"`
	UploadedBy    string               `json:"uploaded_by,omitempty"`
	Checksum      string               `json:"checksum"`
	Delimiter     string               `json:"delimiter,omitempty"`
	Status        string               `json:"status"`
	IsActive      bool                 `json:"is_active"`
	Stats         DatasetStatsResponse `json:"stats"`
	ErrorCount    int                  `json:"error_count"`
	FailureCode   string               `json:"failure_code,omitempty"`
	FailureReason string               `json:"failure_reason,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	CompletedAt   *time.Time           `json:"completed_at,omitempty"`
	Version       int                  `json:"version"`
}

// DatasetVersionDetailResponse adds the skipped rows to a version
type DatasetVersionDetailResponse struct {
	DatasetVersionResponse
	Errors []dataset.RowErrorDetail `json:"errors"`
}

// NewDatasetVersionResponse converts a version
func NewDatasetVersionResponse(v *dataset.Version) DatasetVersionResponse {
	return DatasetVersionResponse{
		ID:         v.ID.String(),
		FileName:   v.FileName,
		FileSize:   v.FileSize,
		UploadedBy: v.UploadedBy,
		Checksum:   v.Checksum,
		Delimiter:  v.Delimiter,
		Status:     string(v.Status),
		IsActive:   v.Active,
		Stats: DatasetStatsResponse{
			RecordCount:       v.RecordCount,
			SuspiciousCount:   v.SuspiciousCount,
			SybilWalletCount:  v.SybilWalletCount,
			SkippedRows:       v.SkippedRows,
			SynthesizedEmails: v.SynthesizedEmail,
			UntrustedDates:    v.UntrustedDates,
		},
		ErrorCount:    len(v.ErrorDetails),
		FailureCode:   v.FailureCode,
		FailureReason: v.FailureReason,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
		CompletedAt:   v.CompletedAt,
		Version:       v.Version,
	}
}

// NewDatasetVersionDetailResponse converts a version with its row errors
func NewDatasetVersionDetailResponse(v *dataset.Version) DatasetVersionDetailResponse {
	errs := v.ErrorDetails
	if errs == nil {
		errs = []dataset.RowErrorDetail{}
	}
	return DatasetVersionDetailResponse{
		DatasetVersionResponse: NewDatasetVersionResponse(v),
		Errors:                 errs,
	}
}

// NewDatasetVersionListResponse converts a page of versions
func NewDatasetVersionListResponse(versions []*dataset.Version) []DatasetVersionResponse {
	out := make([]DatasetVersionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, NewDatasetVersionResponse(v))
	}
	return out
}

// FraudSummaryResponse tallies suspicious records by reason
type FraudSummaryResponse struct {
	Suspicious   int            `json:"suspicious"`
	SybilWallets int            `json:"sybil_wallets"`
	ByReason     map[string]int `json:"by_reason"`
}

// IngestResponse is returned by a synchronous upload
type IngestResponse struct {
	Dataset      DatasetVersionResponse `json:"dataset"`
	Columns      map[string]string      `json:"columns,omitempty"`
	Skipped      []csvimport.RowError   `json:"skipped,omitempty"`
	SkippedCount int                    `json:"skipped_count"`
	Truncated    bool                   `json:"truncated,omitempty"`
	Summary      FraudSummaryResponse   `json:"summary"`
}

// NewIngestResponse converts a finished ingestion
func NewIngestResponse(res *importapp.IngestResult) IngestResponse {
	resp := IngestResponse{Dataset: NewDatasetVersionResponse(res.Version)}
	if p := res.Parse; p != nil {
		resp.Columns = p.Columns
		resp.Skipped = p.Skipped
		resp.SkippedCount = p.SkippedCount
		resp.Truncated = p.Truncated
		resp.Summary = FraudSummaryResponse{
			Suspicious:   p.Summary.Suspicious,
			SybilWallets: p.Summary.SybilWallets,
			ByReason:     p.Summary.ByReason,
		}
	}
	return resp
}
