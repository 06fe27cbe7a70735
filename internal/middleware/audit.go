package middleware

import (
	"net/http"

	"clubhub/internal/audit"
	"clubhub/internal/common"
	"clubhub/internal/models"

	"github.com/labstack/echo/v4"
)

// AuditDenied records every authenticated request that ends in 403. It has
// to run after ResolveIdentity so the actor is known.
func AuditDenied(sink audit.Sink) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status, _, _ = common.StatusFor(err)
				}
			}
			if status != http.StatusForbidden {
				return err
			}

			tc, ok := common.GetEchoTenantContext(c)
			if !ok {
				return err
			}
			userID := tc.UserID
			sink.Record(c.Request().Context(), models.AuditEvent{
				Action:      models.AuditAccessDenied,
				ActorUserID: &userID,
				ActorClubID: tc.ClubID,
				Detail: map[string]any{
					"method": c.Request().Method,
					"path":   c.Path(),
					"ip":     c.RealIP(),
				},
			})
			return err
		}
	}
}
