package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// RecordReader reads a whole CSV document with encoding/csv, so quoted fields
// may span lines. It backs the community registry import, whose files are
// commonly exported by spreadsheet tools with multi-line cells.
type RecordReader struct {
	delimiter  rune
	lazyQuotes bool
	trimSpace  bool
}

// ParserOption is a functional option for RecordReader configuration
type ParserOption func(*RecordReader)

// WithDelimiter fixes the field delimiter instead of detecting it
func WithDelimiter(d rune) ParserOption {
	return func(p *RecordReader) {
		p.delimiter = d
	}
}

// WithLazyQuotes toggles tolerant quote handling, on by default
func WithLazyQuotes(lazy bool) ParserOption {
	return func(p *RecordReader) {
		p.lazyQuotes = lazy
	}
}

// WithTrimSpace trims every cell
func WithTrimSpace(trim bool) ParserOption {
	return func(p *RecordReader) {
		p.trimSpace = trim
	}
}

// NewRecordReader creates a reader with the given options
func NewRecordReader(opts ...ParserOption) *RecordReader {
	p := &RecordReader{lazyQuotes: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseError reports a CSV syntax error on a physical line
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Failed to parse CSV: line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Code returns the import error code
func (e *ParseError) Code() string { return ErrCodeImportCSVParsing }

// ReadAll returns every non-empty record of text. The BOM is stripped and,
// unless fixed by WithDelimiter, the delimiter is detected from the first line.
func (p *RecordReader) ReadAll(text string) ([][]string, error) {
	text = StripBOM(text)
	delimiter := p.delimiter
	if delimiter == 0 {
		first := text
		if i := strings.IndexAny(text, "\r\n"); i >= 0 {
			first = text[:i]
		}
		delimiter = DetectDelimiter(first)
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delimiter
	r.LazyQuotes = p.lazyQuotes
	r.FieldsPerRecord = -1
	r.ReuseRecord = false

	var records [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &ParseError{Line: pe.Line, Err: pe.Err}
			}
			return nil, &ParseError{Err: err}
		}
		if p.trimSpace {
			for i := range record {
				record[i] = strings.TrimSpace(record[i])
			}
		}
		records = append(records, record)
	}
	return records, nil
}
