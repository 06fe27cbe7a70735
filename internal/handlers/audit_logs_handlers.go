package handlers

import (
	"net/http"

	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/internal/services"

	"github.com/labstack/echo/v4"
)

// AuditLogsHandlers handles audit logs related HTTP requests
type AuditLogsHandlers struct {
	auditLogsService services.AuditLogsService
}

// NewAuditLogsHandlers creates a new audit logs handlers instance
func NewAuditLogsHandlers(auditLogsService services.AuditLogsService) *AuditLogsHandlers {
	return &AuditLogsHandlers{
		auditLogsService: auditLogsService,
	}
}

// ListClubAuditLogs returns the newest events for one club first.
func (h *AuditLogsHandlers) ListClubAuditLogs(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return common.RespondError(c, err)
	}
	clubID, err := pathUUID(c, "id")
	if err != nil {
		return common.RespondError(c, err)
	}

	limit, offset := pagination(c)
	events, err := h.auditLogsService.ListClubEvents(c.Request().Context(), tc, clubID, limit, offset)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, ListResponse[*models.AuditEvent]{Data: events, Limit: limit, Offset: offset})
}
