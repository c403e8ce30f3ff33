// Package apperror provides structured error handling for the billing core.
// All business errors must use AppError so callers receive a stable error taxonomy.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Business rule violations (422)
	CodeBusinessRule       = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeConversionNotFound = "CONVERSION_NOT_FOUND"
	CodeEmptyDocument      = "EMPTY_DOCUMENT"
	CodeInvalidTotal       = "INVALID_TOTAL"
	CodeDocumentPosted     = "DOCUMENT_ALREADY_POSTED"
	CodeInvalidTransition  = "INVALID_STATUS_TRANSITION"
	CodeNotConfigured      = "NOT_CONFIGURED"

	// Authorization errors (401)
	CodeUnauthorized = "UNAUTHORIZED"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict               = "CONFLICT"
	CodeDuplicate              = "DUPLICATE_ENTRY"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeAlreadyReversed        = "ALREADY_REVERSED"
	CodeIdempotencyConflict    = "IDEMPOTENCY_IN_PROGRESS"
	CodeIdempotencyMismatch    = "IDEMPOTENCY_KEY_REUSED"
)

// ErrCrossTenantAccess marks a lookup that hit a row owned by another tenant.
// It is wrapped inside a NOT_FOUND AppError so the response never reveals the row exists.
var ErrCrossTenantAccess = errors.New("cross-tenant access")

// AppError is the standard error type for the platform.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewValidationFailed creates a validation error carrying every failed reason.
func NewValidationFailed(message string, reasons []string) *AppError {
	return NewValidation(message).WithDetail("reasons", reasons)
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewCrossTenantAccess returns the same shape as NewNotFound.
// The cause is only visible to errors.Is and server-side logs.
func NewCrossTenantAccess(entity string, id any) *AppError {
	return NewNotFound(entity, id).WithCause(ErrCrossTenantAccess)
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInsufficientStock creates a stock shortage error
func NewInsufficientStock(productID string, requested, available, short string) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
			"short":      short,
		},
	}
}

// NewConversionNotFound reports a missing (product, from, to) conversion record.
func NewConversionNotFound(productID, from, to string) *AppError {
	return &AppError{
		Code:       CodeConversionNotFound,
		Message:    fmt.Sprintf("no conversion from %s to %s", from, to),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id": productID,
			"from":       from,
			"to":         to,
		},
	}
}

// NewEmptyDocument is returned when a document has no lines.
func NewEmptyDocument() *AppError {
	return NewBusinessRule(CodeEmptyDocument, "document must contain at least one line")
}

// NewInvalidTotal is returned when a document total has the wrong sign for its kind.
func NewInvalidTotal(total string) *AppError {
	return NewBusinessRule(CodeInvalidTotal, "document total is invalid").WithDetail("total", total)
}

// NewAlreadyPosted is returned on any attempt to edit a frozen document.
func NewAlreadyPosted(documentID any) *AppError {
	return NewBusinessRule(CodeDocumentPosted, "document is posted and can no longer be modified").
		WithDetail("document_id", documentID)
}

// NewInvalidTransition reports a status change the document lifecycle does not allow.
func NewInvalidTransition(from, to string) *AppError {
	return NewBusinessRule(CodeInvalidTransition, fmt.Sprintf("cannot move document from %s to %s", from, to)).
		WithDetail("from", from).
		WithDetail("to", to)
}

// NewNotConfigured reports a setting that resolved to nothing at every level.
func NewNotConfigured(key string) *AppError {
	return NewBusinessRule(CodeNotConfigured, fmt.Sprintf("setting %q is not configured", key)).
		WithDetail("key", key)
}

// NewAlreadyReversed is returned when a reversal reference was already applied.
func NewAlreadyReversed(reference string) *AppError {
	return &AppError{
		Code:       CodeAlreadyReversed,
		Message:    "reversal was already applied",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"reference": reference},
	}
}

// NewIdempotencyConflict reports a key whose first request is still running.
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotencyConflict,
		Message:    "A request with this idempotency key is still in progress",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch reports a key reused for a different request.
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotencyMismatch,
		Message:    "Idempotency key was already used for a different request",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified concurrently. Please retry.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// --- Helpers ---

// AsAppError extracts AppError from error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// IsNotFound checks if error is a not found error.
func IsNotFound(err error) bool {
	return Is(err, CodeNotFound)
}

// IsConcurrentModification checks if error is an optimistic locking error.
func IsConcurrentModification(err error) bool {
	return Is(err, CodeConcurrentModification)
}

// IsCrossTenant reports whether a not-found error was caused by a foreign tenant row.
func IsCrossTenant(err error) bool {
	return errors.Is(err, ErrCrossTenantAccess)
}
