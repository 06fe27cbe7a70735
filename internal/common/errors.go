package common

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every layer. Lower layers wrap these with
// fmt.Errorf("...: %w", Err...) and the HTTP boundary maps them to status
// codes in RespondError.
var (
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidToken          = errors.New("invalid or expired token")
	ErrConflict              = errors.New("conflict")
	ErrInternalInconsistency = errors.New("internal inconsistency")
	ErrUnavailable           = errors.New("service unavailable")
	ErrNotFound              = errors.New("not found")
	ErrInternal              = errors.New("internal error")
	ErrRateLimited           = errors.New("too many requests")
	ErrNoTenantContext       = errors.New("no tenant context on request")
)

// ValidationError reports a rejected input field. It is raised before any
// storage access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError carries the violated unique constraint name.
type ConflictError struct {
	Constraint string
}

func (e *ConflictError) Error() string {
	if e.Constraint == "" {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("%s: %s", ErrConflict.Error(), e.Constraint)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// InternalError keeps the SQLSTATE of an unexpected storage failure without
// exposing the driver message.
type InternalError struct {
	Code string
}

func (e *InternalError) Error() string {
	if e.Code == "" {
		return ErrInternal.Error()
	}
	return fmt.Sprintf("%s (sqlstate %s)", ErrInternal.Error(), e.Code)
}

func (e *InternalError) Is(target error) bool {
	return target == ErrInternal
}
