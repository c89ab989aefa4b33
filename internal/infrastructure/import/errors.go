package csvimport

import (
	"errors"
	"fmt"
	"strings"
)

// Import error codes
const (
	ErrCodeImportEmptyFile         = "ERR_IMPORT_EMPTY_FILE"
	ErrCodeImportFileTooLarge      = "ERR_IMPORT_FILE_TOO_LARGE"
	ErrCodeImportInvalidEncoding   = "ERR_IMPORT_INVALID_ENCODING"
	ErrCodeImportCSVParsing        = "ERR_IMPORT_CSV_PARSING"
	ErrCodeImportMissingColumn     = "ERR_IMPORT_MISSING_COLUMN"
	ErrCodeImportWrongFileType     = "ERR_IMPORT_WRONG_FILE_TYPE"
	ErrCodeImportMalformedRow      = "ERR_IMPORT_MALFORMED_ROW"
	ErrCodeImportEmptyIdentifier   = "ERR_IMPORT_EMPTY_IDENTIFIER"
	ErrCodeImportInvalidIdentifier = "ERR_IMPORT_INVALID_IDENTIFIER"
	ErrCodeImportDuplicateInFile   = "ERR_IMPORT_DUPLICATE_IN_FILE"
)

// Sentinels for errors.Is checks against the structured error types below
var (
	ErrEmptyInput      = errors.New("not enough data: a header row and at least one data row are required")
	ErrMissingColumn   = errors.New("required column not found")
	ErrWrongFileType   = errors.New("file belongs to a different import workflow")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrInvalidEncoding = errors.New("invalid file encoding")
)

// CodedError is implemented by every structural import failure
type CodedError interface {
	error
	Code() string
}

// EmptyInputError is returned when fewer than two non-blank lines remain
type EmptyInputError struct {
	Lines int
}

func (e *EmptyInputError) Error() string {
	return "File is empty or missing data rows."
}

// Code returns the import error code
func (e *EmptyInputError) Code() string { return ErrCodeImportEmptyFile }

// Is matches ErrEmptyInput
func (e *EmptyInputError) Is(target error) bool { return target == ErrEmptyInput }

// MissingColumnError is returned when a required canonical column cannot be resolved
type MissingColumnError struct {
	Column  string
	Headers []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("Column '%s' not found. Please check your CSV headers. Detected columns: %s",
		e.Column, strings.Join(e.Headers, ", "))
}

// Code returns the import error code
func (e *MissingColumnError) Code() string { return ErrCodeImportMissingColumn }

// Is matches ErrMissingColumn
func (e *MissingColumnError) Is(target error) bool { return target == ErrMissingColumn }

// WrongFileTypeError is returned when a community registry file is fed to the participant importer
type WrongFileTypeError struct {
	Headers []string
}

func (e *WrongFileTypeError) Error() string {
	return "It looks like you uploaded a Community Registry file. " +
		"Please upload this in 'Admin Settings' > 'Community Registry'."
}

// Code returns the import error code
func (e *WrongFileTypeError) Code() string { return ErrCodeImportWrongFileType }

// Is matches ErrWrongFileType
func (e *WrongFileTypeError) Is(target error) bool { return target == ErrWrongFileType }

// ErrorCode extracts the import error code of err, or "" when err is not a structural import error
func ErrorCode(err error) string {
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.Code()
	}
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return ErrCodeImportFileTooLarge
	case errors.Is(err, ErrInvalidEncoding):
		return ErrCodeImportInvalidEncoding
	}
	return ""
}

// RowError represents a non-fatal problem with one row
type RowError struct {
	Row     int    `json:"row"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// NewRowError creates a new RowError
func NewRowError(row int, code, message string) RowError {
	return RowError{Row: row, Code: code, Message: message}
}

// ErrorCollection keeps the first maxErrors row errors and counts the rest
type ErrorCollection struct {
	errors     []RowError
	maxErrors  int
	totalCount int
}

// NewErrorCollection creates a new ErrorCollection with a maximum error limit
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &ErrorCollection{maxErrors: maxErrors}
}

// Add adds an error to the collection
func (ec *ErrorCollection) Add(err RowError) {
	ec.totalCount++
	if len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

// AddMalformedRow records a row that was skipped for having too few fields
func (ec *ErrorCollection) AddMalformedRow(row, fields int) {
	ec.Add(NewRowError(row, ErrCodeImportMalformedRow,
		fmt.Sprintf("row skipped: expected at least 2 fields, found %d", fields)))
}

// Errors returns the collected errors
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// TotalCount returns the total number of errors including those not collected
func (ec *ErrorCollection) TotalCount() int {
	return ec.totalCount
}

// IsTruncated returns true if some errors were not collected due to the limit
func (ec *ErrorCollection) IsTruncated() bool {
	return ec.totalCount > ec.maxErrors
}
