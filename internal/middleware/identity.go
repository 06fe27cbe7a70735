package middleware

import (
	"context"
	"errors"
	"strings"

	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/internal/security"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SessionVerifier checks a bearer session token.
type SessionVerifier interface {
	VerifySessionToken(token string) (*security.SessionClaims, error)
}

// UserLookup re-reads the caller from storage on every request.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ResolveIdentity authenticates the caller and binds a TenantContext built
// from the current user row. Claims are trusted for the user id only, since
// role and club may have changed after the token was issued.
func ResolveIdentity(verifier SessionVerifier, users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tc, err := resolve(c.Request().Context(), verifier, users, c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return common.RespondError(c, err)
			}
			common.SetTenantContext(c, tc)
			return next(c)
		}
	}
}

func resolve(ctx context.Context, verifier SessionVerifier, users UserLookup, header string) (*common.TenantContext, error) {
	raw, ok := bearerToken(header)
	if !ok {
		return nil, common.ErrUnauthenticated
	}
	claims, err := verifier.VerifySessionToken(raw)
	if err != nil {
		return nil, common.ErrUnauthenticated
	}
	userID, err := claims.SubjectID()
	if err != nil {
		return nil, common.ErrUnauthenticated
	}

	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, common.ErrForbidden
	}
	if user.Role.IsTenantScoped() && user.ClubID == nil {
		zap.L().Error("tenant user has no club",
			zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
		return nil, common.ErrInternalInconsistency
	}

	tc := &common.TenantContext{UserID: user.ID, Role: user.Role}
	if user.Role.IsTenantScoped() {
		clubID := *user.ClubID
		tc.ClubID = &clubID
	}
	return tc, nil
}
