package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"clubhub/internal/common"
	"clubhub/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow(t *testing.T) {
	clubID := uuid.New()
	admins := models.NewRoleSet(models.RoleClubAdmin, models.RolePlatformAdmin)

	ok, err := Allow(nil, admins)
	assert.ErrorIs(t, err, common.ErrNoTenantContext)
	assert.False(t, ok)

	ok, err = Allow(&common.TenantContext{UserID: uuid.New(), Role: models.RoleClubAdmin, ClubID: &clubID}, admins)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Allow(&common.TenantContext{UserID: uuid.New(), Role: models.RoleParent, ClubID: &clubID}, admins)
	require.NoError(t, err)
	assert.False(t, ok)
}

func withTenant(tc *common.TenantContext) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if tc != nil {
				common.SetTenantContext(c, tc)
			}
			return next(c)
		}
	}
}

func TestRequireRoles(t *testing.T) {
	clubID := uuid.New()
	tests := []struct {
		name   string
		tc     *common.TenantContext
		status int
	}{
		{"allowed role", &common.TenantContext{UserID: uuid.New(), Role: models.RoleCoach, ClubID: &clubID}, http.StatusOK},
		{"other role", &common.TenantContext{UserID: uuid.New(), Role: models.RolePlayer, ClubID: &clubID}, http.StatusForbidden},
		{"no identity", nil, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			called := false
			e.GET("/roster", func(c echo.Context) error {
				called = true
				return c.NoContent(http.StatusOK)
			}, withTenant(tt.tc), RequireRoles(models.RoleCoach, models.RoleClubAdmin))

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roster", nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status == http.StatusOK, called)
		})
	}
}
