package importapp

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/certhub/backend/internal/domain/community"
	"github.com/certhub/backend/internal/domain/shared"
	csvimport "github.com/certhub/backend/internal/infrastructure/import"
	"github.com/certhub/backend/internal/infrastructure/telemetry"
)

// DefaultCommunityBatchSize is the number of communities written per transaction
const DefaultCommunityBatchSize = 500

// batchCommitFailed is the reason given for every item of a failed batch
const batchCommitFailed = "Batch commit failed"

// CommunityParseOptions overrides header and identifier detection. Nil
// fields are auto-detected.
type CommunityParseOptions struct {
	FirstRowIsHeader *bool
	IdentifierColumn *int
}

// CommunityRowError explains why a registry row was skipped
type CommunityRowError struct {
	Row    int    `json:"row"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// CommunityParseResult is the outcome of parsing a registry file
type CommunityParseResult struct {
	TotalRows    int                    `json:"total_rows"`
	ValidEntries int                    `json:"valid_entries"`
	SkippedRows  int                    `json:"skipped_rows"`
	HasHeader    bool                   `json:"has_header"`
	Identifier   int                    `json:"identifier_column"`
	Errors       []CommunityRowError    `json:"errors"`
	Imported     []*community.Community `json:"-"`
}

// BulkImportError is a community that could not be written
type BulkImportError struct {
	Slug   string `json:"slug"`
	Reason string `json:"reason"`
}

// BulkImportResult counts created and updated communities
type BulkImportResult struct {
	Imported int               `json:"imported"`
	Updated  int               `json:"updated"`
	Errors   []BulkImportError `json:"errors"`
}

// CommunityImportResult combines parsing and writing of one registry file
type CommunityImportResult struct {
	Parse *CommunityParseResult `json:"parse"`
	Bulk  *BulkImportResult     `json:"bulk"`
}

// CommunityImportService parses partner registry files and upserts them by slug
type CommunityImportService struct {
	repo            community.Repository
	reader          *csvimport.RecordReader
	metrics         IngestRecorder
	logger          *zap.Logger
	clock           shared.Clock
	batchSize       int
	maxUploadBytes  int64
	fallbackCharset string
}

// NewCommunityImportService creates a new CommunityImportService
func NewCommunityImportService(repo community.Repository, opts ...ServiceOption) *CommunityImportService {
	o := buildOptions(opts)
	return &CommunityImportService{
		repo:            repo,
		reader:          csvimport.NewRecordReader(csvimport.WithLazyQuotes(true), csvimport.WithTrimSpace(true)),
		metrics:         o.metrics,
		logger:          o.logger,
		clock:           o.clock,
		batchSize:       o.batchSize,
		maxUploadBytes:  o.maxUploadBytes,
		fallbackCharset: o.fallbackCharset,
	}
}

// ParseBytes decodes data and parses it as a registry file
func (s *CommunityImportService) ParseBytes(data []byte, opts CommunityParseOptions) (*CommunityParseResult, error) {
	if s.maxUploadBytes > 0 && int64(len(data)) > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds the limit of %d bytes",
			csvimport.ErrFileTooLarge, len(data), s.maxUploadBytes)
	}
	text, err := csvimport.DecodeText(data, s.fallbackCharset)
	if err != nil {
		return nil, err
	}
	return s.ParseString(text, opts)
}

// ParseString parses registry text. Empty input is not an error: the result
// carries a single row-0 error instead. Malformed CSV returns *csvimport.ParseError.
func (s *CommunityImportService) ParseString(text string, opts CommunityParseOptions) (*CommunityParseResult, error) {
	rows, err := s.reader.ReadAll(text)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &CommunityParseResult{
			Errors:   []CommunityRowError{{Row: 0, Code: csvimport.ErrCodeImportEmptyFile, Reason: "File is empty"}},
			Imported: []*community.Community{},
		}, nil
	}

	hasHeader := community.DetectHeader(rows[0])
	if opts.FirstRowIsHeader != nil {
		hasHeader = *opts.FirstRowIsHeader
	}

	headerRow := rows[0]
	if !hasHeader {
		headerRow = make([]string, len(rows[0]))
		for i := range headerRow {
			headerRow[i] = columnKey(i)
		}
	}

	identifier := community.FindIdentifierColumn(headerRow)
	if opts.IdentifierColumn != nil {
		identifier = *opts.IdentifierColumn
		if identifier < 0 || identifier >= len(headerRow) {
			return nil, shared.NewDomainError("INVALID_INPUT",
				fmt.Sprintf("Identifier column %d is out of range, the file has %d columns", identifier, len(headerRow)))
		}
	}

	dataRows := rows
	firstRow := 1
	if hasHeader {
		dataRows = rows[1:]
		firstRow = 2
	}

	result := &CommunityParseResult{
		TotalRows:  len(dataRows),
		HasHeader:  hasHeader,
		Identifier: identifier,
		Errors:     []CommunityRowError{},
		Imported:   make([]*community.Community, 0, len(dataRows)),
	}
	now := s.clock()
	seen := make(map[string]struct{}, len(dataRows))

	for i, row := range dataRows {
		rowNumber := firstRow + i
		skip := func(code, reason string) {
			result.Errors = append(result.Errors, CommunityRowError{Row: rowNumber, Code: code, Reason: reason})
			result.SkippedRows++
		}

		raw := ""
		if identifier >= 0 && identifier < len(row) {
			raw = row[identifier]
		}
		if strings.TrimSpace(raw) == "" {
			skip(csvimport.ErrCodeImportEmptyIdentifier, "Empty identifier value")
			continue
		}

		c, err := community.New(raw, metadataOf(row, headerRow, identifier), now)
		if err != nil {
			skip(csvimport.ErrCodeImportInvalidIdentifier, fmt.Sprintf("Invalid identifier after normalization: \"%s\"", raw))
			continue
		}
		if _, dup := seen[c.Slug]; dup {
			skip(csvimport.ErrCodeImportDuplicateInFile, fmt.Sprintf("Duplicate entry: \"%s\"", c.DisplayName))
			continue
		}
		seen[c.Slug] = struct{}{}

		result.Imported = append(result.Imported, c)
		result.ValidEntries++
	}
	return result, nil
}

// BulkImport upserts communities by slug in batches. A failed existing-slug
// lookup is logged and every community is then treated as new. A failed
// batch reports each of its communities and the import moves on. A slug
// repeated in communities is created once and then updated.
func (s *CommunityImportService) BulkImport(ctx context.Context, communities []*community.Community) (*BulkImportResult, error) {
	result := &BulkImportResult{Errors: []BulkImportError{}}
	if len(communities) == 0 {
		return result, nil
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "community", "bulk_import",
		telemetry.WithAttribute(telemetry.SpanAttrRecordCount, len(communities)))
	defer span.End()

	existing, err := s.repo.ExistingSlugs(ctx)
	if err != nil {
		s.logger.Warn("Failed to load existing communities, importing all as new", zap.Error(err))
		existing = make(map[string]struct{})
	}

	for start := 0; start < len(communities); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		chunk := communities[start:min(start+s.batchSize, len(communities))]

		var creates, updates []*community.Community
		for _, c := range chunk {
			if _, ok := existing[c.Slug]; ok {
				updates = append(updates, c)
				continue
			}
			creates = append(creates, c)
			existing[c.Slug] = struct{}{}
		}

		if err := s.repo.SaveBatch(ctx, creates, updates); err != nil {
			s.logger.Error("Community batch commit failed",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(chunk)),
				zap.Error(err),
			)
			for _, c := range chunk {
				result.Errors = append(result.Errors, BulkImportError{Slug: c.Slug, Reason: batchCommitFailed})
			}
			continue
		}
		result.Imported += len(creates)
		result.Updated += len(updates)
	}

	s.metrics.RecordCommunityImport(ctx, result.Imported, result.Updated, len(result.Errors))
	s.logger.Info("Communities imported",
		zap.Int("imported", result.Imported),
		zap.Int("updated", result.Updated),
		zap.Int("failed", len(result.Errors)),
	)
	return result, nil
}

// Import parses data and writes the valid entries
func (s *CommunityImportService) Import(ctx context.Context, data []byte, opts CommunityParseOptions) (*CommunityImportResult, error) {
	parsed, err := s.ParseBytes(data, opts)
	if err != nil {
		return nil, err
	}
	bulk, err := s.BulkImport(ctx, parsed.Imported)
	if err != nil {
		return nil, err
	}
	return &CommunityImportResult{Parse: parsed, Bulk: bulk}, nil
}

// List pages through stored communities
func (s *CommunityImportService) List(ctx context.Context, search string, page, pageSize int) (shared.Paginated[*community.Community], error) {
	page, pageSize = shared.NormalizePage(page, pageSize)
	items, total, err := s.repo.FindAll(ctx, search, page, pageSize)
	if err != nil {
		return shared.Paginated[*community.Community]{}, fmt.Errorf("failed to list communities: %w", err)
	}
	return shared.NewPaginated(items, total, page, pageSize), nil
}

// Get returns one community by slug
func (s *CommunityImportService) Get(ctx context.Context, slug string) (*community.Community, error) {
	return s.repo.FindBySlug(ctx, slug)
}

// metadataOf collects the non-empty cells outside the identifier column
func metadataOf(row, headerRow []string, identifier int) map[string]string {
	meta := make(map[string]string)
	for j, cell := range row {
		if j == identifier || cell == "" {
			continue
		}
		key := ""
		if j < len(headerRow) {
			key = headerRow[j]
		}
		if key == "" {
			key = columnKey(j)
		}
		meta[key] = community.NormalizeName(cell)
	}
	return meta
}

func columnKey(i int) string {
	return fmt.Sprintf("column_%d", i+1)
}
