package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the triage pipeline taxonomy.
const (
	CodeInvalidInput           = "INVALID_INPUT"
	CodePermissionDenied       = "PERMISSION_DENIED"
	CodeModelUnavailable       = "MODEL_UNAVAILABLE"
	CodeModelTimeout           = "MODEL_TIMEOUT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeAuditWriteFailure      = "AUDIT_WRITE_FAILURE"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewInvalidInput flags malformed text or ticket input.
func NewInvalidInput(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidInput, message, http.StatusBadRequest, details)
}

// NewPermissionDenied flags an unauthorized attempt to view original content.
func NewPermissionDenied(message string) error {
	return NewDomainError(CodePermissionDenied, message, http.StatusForbidden, nil)
}

// NewModelUnavailable wraps a failed model invocation.
func NewModelUnavailable(err error) error {
	return &DomainError{
		Code:       CodeModelUnavailable,
		Message:    "model invocation failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewModelTimeout wraps a model invocation that exceeded its deadline.
func NewModelTimeout(err error) error {
	return &DomainError{
		Code:       CodeModelTimeout,
		Message:    "model invocation timed out",
		HTTPStatus: http.StatusGatewayTimeout,
		Err:        err,
	}
}

// NewConcurrentModification flags a lost update on a ticket or task; the
// caller must reload and retry.
func NewConcurrentModification(resource string, details map[string]any) error {
	return NewDomainError(CodeConcurrentModification,
		fmt.Sprintf("%s was modified concurrently", resource),
		http.StatusConflict, details)
}

// NewAuditWriteFailure wraps a failed durable audit append. Callers must
// treat this as fatal to the triggering transition.
func NewAuditWriteFailure(err error) error {
	return &DomainError{
		Code:       CodeAuditWriteFailure,
		Message:    "audit append failed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewInvalidTransition flags a lifecycle transition the state machine rejects.
func NewInvalidTransition(from, to string) error {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("cannot transition from %s to %s", from, to),
		http.StatusConflict, map[string]any{"from": from, "to": to})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts an error into its DomainError form.
func MapError(err error) error {
	return ToDomainError(err)
}
