package shared

import "errors"

// DomainError represents a domain-level error.
// Two DomainErrors match under errors.Is when their codes are equal, so callers
// can test against the sentinels below regardless of the message.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// CodeOf returns the DomainError code carried by err, or "" if there is none
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// Fiscal core errors
var (
	ErrSeriesExhausted        = NewDomainError("SERIES_EXHAUSTED", "Numbering series has reached its maximum number")
	ErrSeriesInactive         = NewDomainError("SERIES_INACTIVE", "Numbering series is inactive")
	ErrInvalidLineItem        = NewDomainError("INVALID_LINE_ITEM", "Invalid line item")
	ErrInvalidTaxRate         = NewDomainError("INVALID_TAX_RATE", "Tax rate must be between 0 and 100")
	ErrInvalidTaxabilityCode  = NewDomainError("INVALID_TAXABILITY_CODE", "Unknown taxability code")
	ErrRoundingOverflow       = NewDomainError("ROUNDING_OVERFLOW", "Monetary amount exceeds representable precision")
	ErrInvalidDiscount        = NewDomainError("INVALID_DISCOUNT", "Invalid document discount")
	ErrInvalidStateTransition = NewDomainError("INVALID_STATE_TRANSITION", "Invalid state transition")
	ErrDocumentLocked         = NewDomainError("DOCUMENT_LOCKED", "Document can no longer be modified")
	ErrMissingParty           = NewDomainError("MISSING_PARTY", "Required party fields are missing")
	ErrMissingCorrection      = NewDomainError("MISSING_CORRECTION", "A linked correcting document is required")
	ErrSessionClosed          = NewDomainError("SESSION_CLOSED", "Cash session is closed")
	ErrSessionSuspended       = NewDomainError("SESSION_SUSPENDED", "Cash session is suspended")
	ErrSessionAlreadyClosing  = NewDomainError("SESSION_ALREADY_CLOSING", "Cash session is already closing")
	ErrInvalidPayment         = NewDomainError("INVALID_PAYMENT", "Invalid payment")
)
