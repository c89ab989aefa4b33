package dto

import (
	"net/http"
	"strings"

	csvimport "github.com/certhub/backend/internal/infrastructure/import"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"
	ErrCodeValidationRange    = "ERR_VALIDATION_RANGE"
	ErrCodeValidationLength   = "ERR_VALIDATION_LENGTH"
)

// Resource error codes
const (
	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	ErrCodeConflict      = "ERR_CONFLICT"
	ErrCodeNoRowErrors   = "ERR_NO_ROW_ERRORS"
)

// Business rule error codes
const (
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
)

// Input error codes
const (
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Ingestion error codes that are not structural import errors
const (
	ErrCodePersistence    = "ERR_PERSISTENCE"
	ErrCodeImportCanceled = "ERR_IMPORT_CANCELED"
	ErrCodeImportInternal = "ERR_IMPORT_INTERNAL"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodeTooManyRequests = "ERR_TOO_MANY_REQUESTS"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,
	ErrCodeValidationLength:   http.StatusBadRequest,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,
	ErrCodeConflict:      http.StatusConflict,
	ErrCodeNoRowErrors:   http.StatusNotFound,

	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeBusinessRule: http.StatusUnprocessableEntity,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Structural import failures carry their message verbatim to the uploader
	csvimport.ErrCodeImportEmptyFile:         http.StatusUnprocessableEntity,
	csvimport.ErrCodeImportFileTooLarge:      http.StatusRequestEntityTooLarge,
	csvimport.ErrCodeImportInvalidEncoding:   http.StatusUnprocessableEntity,
	csvimport.ErrCodeImportCSVParsing:        http.StatusUnprocessableEntity,
	csvimport.ErrCodeImportMissingColumn:     http.StatusUnprocessableEntity,
	csvimport.ErrCodeImportWrongFileType:     http.StatusUnprocessableEntity,
	csvimport.ErrCodeImportMalformedRow:      http.StatusUnprocessableEntity,
	csvimport.ErrCodeImportEmptyIdentifier:   http.StatusUnprocessableEntity,
	csvimport.ErrCodeImportInvalidIdentifier: http.StatusUnprocessableEntity,
	csvimport.ErrCodeImportDuplicateInFile:   http.StatusUnprocessableEntity,

	ErrCodePersistence:    http.StatusInternalServerError,
	ErrCodeImportCanceled: http.StatusServiceUnavailable,
	ErrCodeImportInternal: http.StatusInternalServerError,

	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeTooManyRequests: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code. Unlisted
// import codes map to 422, other unknown codes to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if IsImportErrorCode(code) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to API codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":         ErrCodeNotFound,
	"ALREADY_EXISTS":    ErrCodeAlreadyExists,
	"INVALID_INPUT":     ErrCodeInvalidInput,
	"INVALID_STATE":     ErrCodeInvalidState,
	"VALIDATION_ERROR":  ErrCodeValidation,
	"BAD_REQUEST":       ErrCodeBadRequest,
	"INTERNAL_ERROR":    ErrCodeInternal,
	"NO_ROW_ERRORS":     ErrCodeNoRowErrors,
	"INVALID_FILE_NAME": ErrCodeInvalidInput,
	"INVALID_FILE_SIZE": ErrCodeInvalidInput,
	"INVALID_SLUG":      ErrCodeInvalidInput,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}

// IsImportErrorCode reports whether code is a structural import failure
func IsImportErrorCode(code string) bool {
	return strings.HasPrefix(code, "ERR_IMPORT_") && code != ErrCodeImportCanceled && code != ErrCodeImportInternal
}
