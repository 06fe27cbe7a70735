package common

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"clubhub/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	TenantContextKey contextKey = "tenant_context"
	RequestIDKey     contextKey = "request_id"
)

// TenantContext is the caller identity resolved for one request. It is
// rebuilt from the user row on every request and never persisted.
type TenantContext struct {
	UserID uuid.UUID
	Role   models.Role
	ClubID *uuid.UUID
}

// IsPlatformAdmin reports whether the caller may act across clubs.
func (tc *TenantContext) IsPlatformAdmin() bool {
	return tc != nil && tc.Role == models.RolePlatformAdmin
}

// CanAccessClub reports whether the caller may act inside clubID.
func (tc *TenantContext) CanAccessClub(clubID uuid.UUID) bool {
	if tc == nil {
		return false
	}
	if tc.IsPlatformAdmin() {
		return true
	}
	return tc.ClubID != nil && *tc.ClubID == clubID
}

// WithTenantContext stores tc on ctx.
func WithTenantContext(ctx context.Context, tc *TenantContext) context.Context {
	return context.WithValue(ctx, TenantContextKey, tc)
}

// GetTenantContext extracts the tenant context from the request context
func GetTenantContext(ctx context.Context) (*TenantContext, bool) {
	tc, ok := ctx.Value(TenantContextKey).(*TenantContext)
	return tc, ok && tc != nil
}

// SetTenantContext attaches tc to both the echo context and the request context.
func SetTenantContext(c echo.Context, tc *TenantContext) {
	c.Set(string(TenantContextKey), tc)
	c.SetRequest(c.Request().WithContext(WithTenantContext(c.Request().Context(), tc)))
}

// GetEchoTenantContext reads the tenant context set by SetTenantContext.
func GetEchoTenantContext(c echo.Context) (*TenantContext, bool) {
	if tc, ok := c.Get(string(TenantContextKey)).(*TenantContext); ok && tc != nil {
		return tc, true
	}
	return GetTenantContext(c.Request().Context())
}

// ValidateUUID validates UUID format
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, NewValidationError(fieldName, "is required")
	}

	// Only the canonical hyphenated form is accepted
	if len(idStr) != 36 {
		return uuid.Nil, NewValidationError(fieldName, "must be a 36 character UUID")
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, NewValidationError(fieldName, "is not a valid UUID")
	}

	return id, nil
}

// NormalizeEmail trims and lower-cases an address and checks its shape.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", NewValidationError("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", NewValidationError("email", "is not a valid email address")
	}
	return email, nil
}

// ValidateRequiredString validates required string fields
func ValidateRequiredString(value, fieldName string, maxLength int) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return NewValidationError(fieldName, "is required")
	}
	if maxLength > 0 && len(value) > maxLength {
		return NewValidationError(fieldName, fmt.Sprintf("cannot exceed %d characters", maxLength))
	}
	return nil
}

// ValidatePaginationParams clamps limit and offset to sane bounds
func ValidatePaginationParams(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
