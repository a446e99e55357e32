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
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInfrastructure   = "INFRASTRUCTURE_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrEmptyQuery        = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrQueryTooLong      = NewDomainError(ErrCodeValidation, "query exceeds maximum length")
	ErrDocumentTooShort  = NewDomainError(ErrCodeValidation, "extracted text is too short to index; the file may be a scanned image without selectable text")
	ErrDimensionMismatch = NewDomainError(ErrCodeValidation, "embedding dimension does not match the index")
	ErrTenantRequired    = NewDomainError(ErrCodeValidation, "tenant id is required")
	ErrInvalidSourceType = NewDomainError(ErrCodeValidation, "invalid source type")
)

// Not found errors
var (
	ErrFAQNotFound      = NewDomainError(ErrCodeNotFound, "faq entry not found")
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrSessionNotFound  = NewDomainError(ErrCodeNotFound, "conversation session not found")
)

// Operation errors
var (
	ErrSubmissionInFlight = NewDomainError(ErrCodeInvalidOperation, "a submission is already in flight for this session")
	ErrNothingToEscalate  = NewDomainError(ErrCodeInvalidOperation, "no user question to escalate")
	ErrNothingToRate      = NewDomainError(ErrCodeInvalidOperation, "no assistant answer to rate")
)

// NewInfrastructureError wraps a transport or provider failure so callers can
// tell "the system could not try" apart from "the system tried and found
// nothing".
func NewInfrastructureError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeInfrastructure, message, err)
}

// IsInfrastructure reports whether err carries the infrastructure error code.
func IsInfrastructure(err error) bool {
	domainErr, ok := err.(*DomainError)
	return ok && domainErr.Code == ErrCodeInfrastructure
}

// IsValidation reports whether err carries the validation error code.
func IsValidation(err error) bool {
	domainErr, ok := err.(*DomainError)
	return ok && domainErr.Code == ErrCodeValidation
}
