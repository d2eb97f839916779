package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/visionops/ticket-service/internal/domain"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Retryable  bool
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

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

// NewLockTimeout signals that the per-ticket lock could not be acquired
// within the bounded wait. The mutation was not applied; callers may retry.
func NewLockTimeout(ticketID string) error {
	return &DomainError{
		Code:       "LOCK_TIMEOUT",
		Message:    "ticket busy, retry",
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
		Details:    map[string]any{"ticket_id": ticketID},
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError, mapping the ticket
// lifecycle taxonomy onto client-facing codes.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var illegalErr *domain.IllegalTransitionError
	if errors.As(err, &illegalErr) {
		return &DomainError{
			Code:       "ILLEGAL_TRANSITION",
			Message:    illegalErr.Error(),
			HTTPStatus: http.StatusConflict,
			Details: map[string]any{
				"current_status":   illegalErr.Current,
				"requested_status": illegalErr.Requested,
			},
			Err: err,
		}
	}
	var noopErr *domain.NoOpTransitionError
	if errors.As(err, &noopErr) {
		return &DomainError{
			Code:       "NOOP_TRANSITION",
			Message:    noopErr.Error(),
			HTTPStatus: http.StatusConflict,
			Details:    map[string]any{"current_status": noopErr.Status},
			Err:        err,
		}
	}
	var severityErr *domain.InvalidSeverityError
	if errors.As(err, &severityErr) {
		return &DomainError{
			Code:       "INVALID_SEVERITY",
			Message:    severityErr.Error(),
			HTTPStatus: http.StatusBadRequest,
			Details:    map[string]any{"severity": severityErr.Value},
			Err:        err,
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}

	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
