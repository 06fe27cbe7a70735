package handlers

import (
	"net/http"

	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// UserHandlers handles user-related HTTP requests
type UserHandlers struct {
	userService       services.UserService
	credentialService services.CredentialService
}

// NewUserHandlers creates a new user handlers instance
func NewUserHandlers(userService services.UserService, credentialService services.CredentialService) *UserHandlers {
	return &UserHandlers{
		userService:       userService,
		credentialService: credentialService,
	}
}

// ListUsers returns the members visible to the caller. Platform admins may
// narrow the list with ?club_id=.
func (h *UserHandlers) ListUsers(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return common.RespondError(c, err)
	}

	var clubID *uuid.UUID
	if raw := c.QueryParam("club_id"); raw != "" {
		id, err := common.ValidateUUID(raw, "club_id")
		if err != nil {
			return common.RespondError(c, err)
		}
		clubID = &id
	}

	limit, offset := pagination(c)
	users, err := h.userService.List(c.Request().Context(), tc, clubID, limit, offset)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, ListResponse[*models.UserView]{Data: users, Limit: limit, Offset: offset})
}

func (h *UserHandlers) Me(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return common.RespondError(c, err)
	}
	user, err := h.userService.Me(c.Request().Context(), tc)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandlers) GetUser(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return common.RespondError(c, err)
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return common.RespondError(c, err)
	}

	user, err := h.userService.Get(c.Request().Context(), tc, id)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateProfile applies a partial update; absent fields are left alone.
func (h *UserHandlers) UpdateProfile(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return common.RespondError(c, err)
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return common.RespondError(c, err)
	}
	var update models.ProfileUpdate
	if err := bindJSON(c, &update); err != nil {
		return common.RespondError(c, err)
	}

	user, err := h.userService.UpdateProfile(c.Request().Context(), tc, id, update)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandlers) DeleteUser(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return common.RespondError(c, err)
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return common.RespondError(c, err)
	}

	if err := h.userService.Delete(c.Request().Context(), tc, id); err != nil {
		return common.RespondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// InviteUser creates a pending account and emails the invitation link.
func (h *UserHandlers) InviteUser(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return common.RespondError(c, err)
	}
	var req services.InviteUserRequest
	if err := bindJSON(c, &req); err != nil {
		return common.RespondError(c, err)
	}

	user, err := h.credentialService.InviteUser(c.Request().Context(), tc, &req)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *UserHandlers) ResendInvite(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return common.RespondError(c, err)
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return common.RespondError(c, err)
	}

	if err := h.credentialService.ResendInvite(c.Request().Context(), tc, id); err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusAccepted, MessageResponse{Message: "Invitation sent"})
}

// IssueSetPassword emails a set-password link to a managed user.
func (h *UserHandlers) IssueSetPassword(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return common.RespondError(c, err)
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return common.RespondError(c, err)
	}

	if err := h.credentialService.IssueSetPassword(c.Request().Context(), tc, id); err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusAccepted, MessageResponse{Message: "Set password link sent"})
}
