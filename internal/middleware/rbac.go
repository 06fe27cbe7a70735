package middleware

import (
	"clubhub/internal/common"
	"clubhub/internal/models"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Allow reports whether the caller holds one of the required roles. A
// missing context is a wiring bug and is returned as an error, never
// treated as a denial or an allow.
func Allow(tc *common.TenantContext, required models.RoleSet) (bool, error) {
	if tc == nil {
		return false, common.ErrNoTenantContext
	}
	return required.Contains(tc.Role), nil
}

// RequireRoles must run after ResolveIdentity.
func RequireRoles(roles ...models.Role) echo.MiddlewareFunc {
	required := models.NewRoleSet(roles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tc, _ := common.GetEchoTenantContext(c)
			ok, err := Allow(tc, required)
			if err != nil {
				zap.L().Error("authorization check without identity", zap.String("path", c.Path()))
				return common.RespondError(c, err)
			}
			if !ok {
				return common.RespondError(c, common.ErrForbidden)
			}
			return next(c)
		}
	}
}
