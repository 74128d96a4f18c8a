package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match wrapped domain errors by code and message.
func (e *DomainError) Is(target error) bool {
	other, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == other.Code && e.Message == other.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnavailable   = "UNAVAILABLE"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingOwner         = NewDomainError(ErrCodeValidation, "memory is missing an owner")
	ErrEmptyContent         = NewDomainError(ErrCodeValidation, "content cannot be empty")
	ErrInvalidSourceType    = NewDomainError(ErrCodeValidation, "invalid source type")
	ErrInvalidProvenance    = NewDomainError(ErrCodeValidation, "source path and page number are valid only for document memories")
	ErrInvalidMessageRole   = NewDomainError(ErrCodeValidation, "message role must be user or assistant")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Document ingestion errors
var (
	ErrUnsupportedFormat = NewDomainError(ErrCodeValidation, "unsupported document format, only PDF is accepted")
	ErrExtractionFailed  = NewDomainError(ErrCodeValidation, "could not extract any text from the document")
)

// Not found errors
var (
	ErrUserNotFound     = NewDomainError(ErrCodeNotFound, "user not found")
	ErrMemoryNotFound   = NewDomainError(ErrCodeNotFound, "memory not found")
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
)

// Authorization errors
var (
	ErrInvalidToken      = NewDomainError(ErrCodeUnauthorized, "invalid or expired token")
	ErrInvalidCredential = NewDomainError(ErrCodeUnauthorized, "invalid google credential")
)

// Availability and safety errors
var (
	ErrStoreUnavailable  = NewDomainError(ErrCodeUnavailable, "knowledge store is unavailable")
	ErrAgentLoopExceeded = NewDomainError(ErrCodeInternalError, "agent loop exceeded the iteration cap")
	ErrRateLimited       = NewDomainError(ErrCodeRateLimited, "too many requests")
)
