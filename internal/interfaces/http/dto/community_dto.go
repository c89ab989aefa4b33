package dto

import (
	"time"

	importapp "github.com/certhub/backend/internal/application/import"
	"github.com/certhub/backend/internal/domain/community"
)

// PreviewLimit caps the entries echoed back by a registry preview
const PreviewLimit = 50

// CommunityImportRequest binds the optional parse overrides of a registry
// upload. Omitted fields are auto-detected.
type CommunityImportRequest struct {
	FirstRowIsHeader *bool `form:"first_row_is_header"`
	IdentifierColumn *int  `form:"identifier_column" binding:"omitempty,min=0"`
}

// Options converts the request into parse options
func (r CommunityImportRequest) Options() importapp.CommunityParseOptions {
	return importapp.CommunityParseOptions{
		FirstRowIsHeader: r.FirstRowIsHeader,
		IdentifierColumn: r.IdentifierColumn,
	}
}

// CommunityResponse is one stored or parsed community
type CommunityResponse struct {
	Slug        string            `json:"slug"`
	DisplayName string            `json:"display_name"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewCommunityResponse converts a community
func NewCommunityResponse(c *community.Community) CommunityResponse {
	return CommunityResponse{
		Slug:        c.Slug,
		DisplayName: c.DisplayName,
		Metadata:    c.Metadata,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// NewCommunityListResponse converts a list of communities
func NewCommunityListResponse(cs []*community.Community) []CommunityResponse {
	out := make([]CommunityResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, NewCommunityResponse(c))
	}
	return out
}

// CommunityPreviewResponse is the parse outcome of a registry file with the
// first PreviewLimit valid entries
type CommunityPreviewResponse struct {
	*importapp.CommunityParseResult
	Preview   []CommunityResponse `json:"preview"`
	Truncated bool                `json:"truncated,omitempty"`
}

// NewCommunityPreviewResponse converts a parse result
func NewCommunityPreviewResponse(res *importapp.CommunityParseResult) CommunityPreviewResponse {
	entries := res.Imported
	truncated := len(entries) > PreviewLimit
	if truncated {
		entries = entries[:PreviewLimit]
	}
	return CommunityPreviewResponse{
		CommunityParseResult: res,
		Preview:              NewCommunityListResponse(entries),
		Truncated:            truncated,
	}
}
