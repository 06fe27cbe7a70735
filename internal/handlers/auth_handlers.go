package handlers

import (
	"context"
	"errors"
	"net/http"

	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// PasswordResetRequestedMessage is returned for every well-formed reset
// request, whether or not the address belongs to anyone.
const PasswordResetRequestedMessage = "If an account exists for that email, a password reset link has been sent."

// AuthHandlers serves the unauthenticated credential flows plus the
// authenticated resend of a verification email.
type AuthHandlers struct {
	authService       services.AuthService
	credentialService services.CredentialService
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(authService services.AuthService, credentialService services.CredentialService) *AuthHandlers {
	return &AuthHandlers{
		authService:       authService,
		credentialService: credentialService,
	}
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenRequest carries the uid and token pair from an emailed link.
type TokenRequest struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// TokenPasswordRequest redeems a set-password or reset link.
type TokenPasswordRequest struct {
	TokenRequest
	Password string `json:"password"`
}

// AcceptInviteRequest redeems an invitation link.
type AcceptInviteRequest struct {
	TokenRequest
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// ForgotPasswordRequest starts the password reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// Login handles user login with email and password
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		return common.RespondError(c, err)
	}

	result, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// RegisterClub creates a club and its first administrator.
func (h *AuthHandlers) RegisterClub(c echo.Context) error {
	var req services.RegisterClubRequest
	if err := bindJSON(c, &req); err != nil {
		return common.RespondError(c, err)
	}

	result, err := h.credentialService.RegisterClub(c.Request().Context(), &req)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *AuthHandlers) AcceptInvite(c echo.Context) error {
	var req AcceptInviteRequest
	if err := bindJSON(c, &req); err != nil {
		return common.RespondError(c, err)
	}
	userID, err := common.ValidateUUID(req.UserID, "user_id")
	if err != nil {
		return common.RespondError(c, err)
	}

	result, err := h.credentialService.AcceptInvite(c.Request().Context(), &services.AcceptInviteRequest{
		UserID:    userID,
		Token:     req.Token,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *AuthHandlers) VerifyEmail(c echo.Context) error {
	var req TokenRequest
	if err := bindJSON(c, &req); err != nil {
		return common.RespondError(c, err)
	}
	userID, err := common.ValidateUUID(req.UserID, "user_id")
	if err != nil {
		return common.RespondError(c, err)
	}

	if err := h.credentialService.VerifyEmail(c.Request().Context(), userID, req.Token); err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Email verified"})
}

// ResendVerification re-sends the caller's own verification email.
func (h *AuthHandlers) ResendVerification(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return common.RespondError(c, err)
	}
	if err := h.credentialService.ResendVerification(c.Request().Context(), tc.UserID); err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusAccepted, MessageResponse{Message: "Verification email sent"})
}

func (h *AuthHandlers) SetPassword(c echo.Context) error {
	return h.redeemPassword(c, h.credentialService.SetPassword)
}

func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	return h.redeemPassword(c, h.credentialService.ResetPassword)
}

type passwordRedeemer func(ctx context.Context, req *services.TokenPasswordRequest) (*models.AuthResult, error)

func (h *AuthHandlers) redeemPassword(c echo.Context, redeem passwordRedeemer) error {
	var req TokenPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		return common.RespondError(c, err)
	}
	userID, err := common.ValidateUUID(req.UserID, "user_id")
	if err != nil {
		return common.RespondError(c, err)
	}

	result, err := redeem(c.Request().Context(), &services.TokenPasswordRequest{
		UserID:   userID,
		Token:    req.Token,
		Password: req.Password,
	})
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ForgotPassword answers 202 with the same body for every well-formed
// address. Only a malformed address is reported back.
func (h *AuthHandlers) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		return common.RespondError(c, err)
	}

	if err := h.credentialService.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		var verr *common.ValidationError
		if errors.As(err, &verr) {
			return common.RespondError(c, err)
		}
		zap.L().Error("password reset request failed", zap.Error(err))
	}
	return c.JSON(http.StatusAccepted, MessageResponse{Message: PasswordResetRequestedMessage})
}
