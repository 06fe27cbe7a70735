package handlers

import (
	"net/http"

	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/internal/services"

	"github.com/labstack/echo/v4"
)

// ClubHandlers handles club-related HTTP requests
type ClubHandlers struct {
	clubService services.ClubService
}

func NewClubHandlers(clubService services.ClubService) *ClubHandlers {
	return &ClubHandlers{clubService: clubService}
}

func (h *ClubHandlers) ListClubs(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return common.RespondError(c, err)
	}

	limit, offset := pagination(c)
	clubs, err := h.clubService.ListClubs(c.Request().Context(), tc, limit, offset)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, ListResponse[*models.Club]{Data: clubs, Limit: limit, Offset: offset})
}

func (h *ClubHandlers) GetClub(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return common.RespondError(c, err)
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return common.RespondError(c, err)
	}

	club, err := h.clubService.GetClub(c.Request().Context(), tc, id)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, club)
}

// DeleteClub removes a club together with its members.
func (h *ClubHandlers) DeleteClub(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return common.RespondError(c, err)
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return common.RespondError(c, err)
	}

	if err := h.clubService.DeleteClub(c.Request().Context(), tc, id); err != nil {
		return common.RespondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
