package handlers

import (
	"strconv"

	"clubhub/internal/common"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// MessageResponse is the body of endpoints that have nothing else to return.
type MessageResponse struct {
	Message string `json:"message"`
}

func bindJSON(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return common.NewValidationError("body", "malformed request body")
	}
	return nil
}

func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	return common.ValidateUUID(c.Param(name), name)
}

// pagination reads limit and offset query parameters. Garbage values fall
// back to the defaults rather than failing the request.
func pagination(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return common.ValidatePaginationParams(limit, offset)
}

func tenant(c echo.Context) (*common.TenantContext, error) {
	tc, ok := common.GetEchoTenantContext(c)
	if !ok {
		return nil, common.ErrNoTenantContext
	}
	return tc, nil
}

// ListResponse wraps paginated collections.
type ListResponse[T any] struct {
	Data   []T `json:"data"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
