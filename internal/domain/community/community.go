// Package community models partner communities imported from registry files.
package community

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/certhub/backend/internal/domain/shared"
)

// Community is a partner community keyed by its slug
type Community struct {
	Slug        string
	DisplayName string
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New builds a community from a raw display name
func New(rawName string, metadata map[string]string, now time.Time) (*Community, error) {
	name := NormalizeName(rawName)
	slug := CreateSlug(name)
	if slug == "" {
		return nil, shared.NewDomainError("INVALID_SLUG", "Community name produces an empty slug")
	}
	if len(metadata) == 0 {
		metadata = nil
	}
	return &Community{
		Slug:        slug,
		DisplayName: name,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ApplyImport overwrites the imported fields of an existing community,
// keeping its creation time.
func (c *Community) ApplyImport(from *Community, now time.Time) {
	c.DisplayName = from.DisplayName
	c.Metadata = from.Metadata
	c.UpdatedAt = now
}

// NormalizeName trims, collapses whitespace runs to one space, replaces
// undecodable bytes and U+FFFD with '?' and drops NUL characters.
func NormalizeName(name string) string {
	name = strings.ToValidUTF8(name, "?")
	name = strings.ReplaceAll(name, "\uFFFD", "?")
	name = strings.ReplaceAll(name, "\x00", "")
	return strings.Join(strings.Fields(name), " ")
}

// CreateSlug lowercases, turns whitespace runs into hyphens, drops anything
// outside [a-z0-9-], collapses hyphen runs and trims hyphens at both ends.
func CreateSlug(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsSpace(r) || r == '-':
			pendingHyphen = true
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// headerKeywords mark a first row as a header row
var headerKeywords = []string{"code", "name", "community", "partner", "id", "identifier", "label", "type", "country", "region"}

// identifierKeywords mark the column holding the community name
var identifierKeywords = []string{"code", "name", "community", "partner", "id", "identifier", "label"}

// DetectHeader reports whether any cell of the first row contains a header keyword
func DetectHeader(firstRow []string) bool {
	for _, cell := range firstRow {
		if containsAny(strings.ToLower(strings.TrimSpace(cell)), headerKeywords) {
			return true
		}
	}
	return false
}

// FindIdentifierColumn picks the identifier column: the only column of a
// single-column file, else the first header with an identifier keyword, else 0.
func FindIdentifierColumn(headers []string) int {
	if len(headers) == 1 {
		return 0
	}
	for i, h := range headers {
		if containsAny(strings.ToLower(strings.TrimSpace(h)), identifierKeywords) {
			return i
		}
	}
	return 0
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Repository persists communities
type Repository interface {
	// ExistingSlugs returns every stored slug
	ExistingSlugs(ctx context.Context) (map[string]struct{}, error)
	// SaveBatch inserts creates, then applies updates to the stored rows with
	// the same slugs, in one transaction
	SaveBatch(ctx context.Context, creates, updates []*Community) error
	// FindAll lists communities ordered by display name
	FindAll(ctx context.Context, search string, page, pageSize int) ([]*Community, int64, error)
	// FindBySlug returns shared.ErrNotFound when absent
	FindBySlug(ctx context.Context, slug string) (*Community, error)
}
