package importapp

import (
	"context"

	"github.com/certhub/backend/internal/domain/fraud"
	"github.com/certhub/backend/internal/domain/participant"
	"github.com/certhub/backend/internal/domain/shared"
	csvimport "github.com/certhub/backend/internal/infrastructure/import"
)

// DefaultMaxRowErrors caps the skipped rows kept in a ParseResult
const DefaultMaxRowErrors = 1000

// ParseResult is the outcome of parsing one participant export
type ParseResult struct {
	Records      []participant.Record
	Delimiter    rune
	Columns      map[string]string
	Skipped      []csvimport.RowError
	SkippedCount int
	Truncated    bool
	Summary      fraud.Summary
}

// ParticipantParser turns participant export text into fraud-scored records
type ParticipantParser struct {
	engine    *fraud.Engine
	chunkSize int
	maxErrors int
	clock     shared.Clock
}

// ParserOption configures a ParticipantParser
type ParserOption func(*ParticipantParser)

// WithChunkSize sets the rows per chunk
func WithChunkSize(n int) ParserOption {
	return func(p *ParticipantParser) {
		if n > 0 {
			p.chunkSize = n
		}
	}
}

// WithMaxRowErrors caps the skipped rows kept in results
func WithMaxRowErrors(n int) ParserOption {
	return func(p *ParticipantParser) {
		if n > 0 {
			p.maxErrors = n
		}
	}
}

// WithFraudEngine replaces the default engine
func WithFraudEngine(e *fraud.Engine) ParserOption {
	return func(p *ParticipantParser) {
		if e != nil {
			p.engine = e
		}
	}
}

// WithParserClock sets the instant used for unparseable dates
func WithParserClock(c shared.Clock) ParserOption {
	return func(p *ParticipantParser) {
		if c != nil {
			p.clock = c
		}
	}
}

// NewParticipantParser creates a parser with the default chunk size and engine
func NewParticipantParser(opts ...ParserOption) *ParticipantParser {
	p := &ParticipantParser{
		engine:    fraud.NewEngine(),
		chunkSize: DefaultChunkSize,
		maxErrors: DefaultMaxRowErrors,
		clock:     shared.SystemClock,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse normalizes, tokenizes and maps text, then scores the records. Header
// problems are returned as *csvimport.EmptyInputError,
// *csvimport.MissingColumnError or *csvimport.WrongFileTypeError. Short rows
// are skipped and reported in the result. progress may be nil.
func (p *ParticipantParser) Parse(ctx context.Context, text string, progress ProgressFunc) (*ParseResult, error) {
	doc, err := csvimport.Prepare(text)
	if err != nil {
		return nil, err
	}

	tokenizer := csvimport.NewTokenizer(doc.Delimiter)
	columns, err := csvimport.ParticipantSchema.Resolve(tokenizer.Split(doc.Header))
	if err != nil {
		return nil, err
	}

	processor := NewChunkProcessor(tokenizer, NewRowNormalizer(columns, p.clock()))
	state, err := RunChunks(ctx, processor, doc.Rows, p.chunkSize, p.maxErrors, progress)
	if err != nil {
		return nil, err
	}

	records := p.engine.EnrichRecords(state.Records)
	if progress != nil {
		progress(100)
	}

	return &ParseResult{
		Records:      records,
		Delimiter:    doc.Delimiter,
		Columns:      columns.Resolved(),
		Skipped:      state.Skipped.Errors(),
		SkippedCount: state.Skipped.TotalCount(),
		Truncated:    state.Skipped.IsTruncated(),
		Summary:      fraud.Summarize(records),
	}, nil
}

// ParseString parses text without progress reporting
func (p *ParticipantParser) ParseString(text string) (*ParseResult, error) {
	return p.Parse(context.Background(), text, nil)
}
