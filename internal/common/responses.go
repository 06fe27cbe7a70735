package common

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Ordered from most to least specific. Messages never say which check failed.
var errorMappings = []errorMapping{
	{ErrInvalidToken, http.StatusBadRequest, "INVALID_TOKEN", "Invalid or expired token"},
	{ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized access"},
	{ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions"},
	{ErrNotFound, http.StatusNotFound, "NOT_FOUND", "Resource not found"},
	{ErrConflict, http.StatusConflict, "CONFLICT", "Resource already exists"},
	{ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests"},
	{ErrUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable"},
	{ErrInternalInconsistency, http.StatusInternalServerError, "SERVER_ERROR", "Internal server error"},
	{ErrNoTenantContext, http.StatusInternalServerError, "SERVER_ERROR", "Internal server error"},
}

// StatusFor returns the HTTP status and error code for err.
func StatusFor(err error) (int, string, string) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed"
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code, m.message
		}
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Internal server error"
}

// RespondError writes the JSON error envelope for err. Server side failures
// are logged with the full error; the client only sees the generic message.
func RespondError(c echo.Context, err error) error {
	status, code, message := StatusFor(err)

	var details map[string]string
	var verr *ValidationError
	if errors.As(err, &verr) {
		details = map[string]string{verr.Field: verr.Message}
	}

	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err))
	}

	return c.JSON(status, CreateErrorResponse(code, message, details))
}
