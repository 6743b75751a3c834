// Package errors defines custom error types for the catalog and session layers.
// CatalogError carries a type classification so callers can decide how to degrade.
package errors

import (
	stderrors "errors"
	"fmt"
)

// CatalogError represents errors raised while talking to a catalog or running a session
type CatalogError struct {
	Type    string
	Message string
	Cause   error
}

func (e *CatalogError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *CatalogError) Unwrap() error {
	return e.Cause
}

// Error type constants
const (
	ErrorTypeConfigurationInvalid = "CONFIGURATION_INVALID"
	ErrorTypeAPIKeyMissing        = "API_KEY_MISSING"
	ErrorTypeFetchFailed          = "FETCH_FAILED"
	ErrorTypeDecodeFailed         = "DECODE_FAILED"
	ErrorTypeRateLimited          = "RATE_LIMITED"
	ErrorTypeTimeout              = "TIMEOUT"
	ErrorTypeInvalidPage          = "INVALID_PAGE"
	ErrorTypeEmptyBatch           = "EMPTY_BATCH"
	ErrorTypeSessionNotFound      = "SESSION_NOT_FOUND"
)

// NewCatalogError creates a new CatalogError
func NewCatalogError(errorType, message string, cause error) *CatalogError {
	return &CatalogError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// IsType reports whether err is a CatalogError of the given type anywhere in its chain.
func IsType(err error, errorType string) bool {
	var ce *CatalogError
	if stderrors.As(err, &ce) {
		return ce.Type == errorType
	}
	return false
}

// NewConfigurationError creates a configuration-related error
func NewConfigurationError(message string, cause error) *CatalogError {
	return NewCatalogError(ErrorTypeConfigurationInvalid, message, cause)
}

// NewAPIKeyMissingError creates an API key missing error
func NewAPIKeyMissingError(service string) *CatalogError {
	return NewCatalogError(ErrorTypeAPIKeyMissing, fmt.Sprintf("API key missing for %s", service), nil)
}

// NewFetchError creates a transport or upstream status error for one catalog page
func NewFetchError(catalog string, page int, cause error) *CatalogError {
	return NewCatalogError(ErrorTypeFetchFailed, fmt.Sprintf("failed to fetch %s page %d", catalog, page), cause)
}

// NewDecodeError creates a malformed-response error
func NewDecodeError(catalog string, page int, cause error) *CatalogError {
	return NewCatalogError(ErrorTypeDecodeFailed, fmt.Sprintf("failed to decode %s page %d", catalog, page), cause)
}

// NewRateLimitError creates an upstream rate limit error
func NewRateLimitError(catalog string, page int) *CatalogError {
	return NewCatalogError(ErrorTypeRateLimited, fmt.Sprintf("rate limited fetching %s page %d", catalog, page), nil)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(operation string) *CatalogError {
	return NewCatalogError(ErrorTypeTimeout, fmt.Sprintf("Operation timeout: %s", operation), nil)
}

// NewInvalidPageError creates an out-of-range page error
func NewInvalidPageError(page int) *CatalogError {
	return NewCatalogError(ErrorTypeInvalidPage, fmt.Sprintf("Invalid page number: %d", page), nil)
}

// NewEmptyBatchError is returned when a session's first batch produced nothing usable
func NewEmptyBatchError() *CatalogError {
	return NewCatalogError(ErrorTypeEmptyBatch, "no usable items returned by either catalog", nil)
}

// NewSessionNotFoundError creates an unknown session error
func NewSessionNotFoundError(id string) *CatalogError {
	return NewCatalogError(ErrorTypeSessionNotFound, fmt.Sprintf("Session not found: %s", id), nil)
}
