package handlers

import (
	"clubhub/internal/middleware"
	"clubhub/internal/models"

	"github.com/labstack/echo/v4"
)

// Router groups the handler sets mounted under one API version.
type Router struct {
	Auth   *AuthHandlers
	Users  *UserHandlers
	Clubs  *ClubHandlers
	Audit  *AuditLogsHandlers
	Health *HealthHandlers
}

// RegisterHealth mounts the health checks at the root, outside any version group.
func (r *Router) RegisterHealth(e *echo.Echo) {
	e.GET("/health", r.Health.LivenessCheck)
	e.GET("/health/ready", r.Health.ReadinessCheck)
}

// Register mounts the API on g. authenticated must resolve the caller's
// identity; the remaining middlewares run after it.
func (r *Router) Register(g *echo.Group, authenticated echo.MiddlewareFunc, after ...echo.MiddlewareFunc) {
	auth := g.Group("/auth")
	auth.POST("/login", r.Auth.Login)
	auth.POST("/register-club", r.Auth.RegisterClub)
	auth.POST("/accept-invite", r.Auth.AcceptInvite)
	auth.POST("/verify-email", r.Auth.VerifyEmail)
	auth.POST("/set-password", r.Auth.SetPassword)
	auth.POST("/forgot-password", r.Auth.ForgotPassword)
	auth.POST("/reset-password", r.Auth.ResetPassword)

	protected := g.Group("", append([]echo.MiddlewareFunc{authenticated}, after...)...)
	protected.POST("/auth/resend-verification", r.Auth.ResendVerification)

	admins := middleware.RequireRoles(models.RoleClubAdmin, models.RolePlatformAdmin)
	platform := middleware.RequireRoles(models.RolePlatformAdmin)

	protected.GET("/me", r.Users.Me)
	protected.GET("/users", r.Users.ListUsers)
	protected.GET("/users/:id", r.Users.GetUser)
	protected.PATCH("/users/:id", r.Users.UpdateProfile)
	protected.DELETE("/users/:id", r.Users.DeleteUser, admins)
	protected.POST("/users/invite", r.Users.InviteUser, admins)
	protected.POST("/users/:id/resend-invite", r.Users.ResendInvite, admins)
	protected.POST("/users/:id/set-password", r.Users.IssueSetPassword, admins)

	protected.GET("/clubs", r.Clubs.ListClubs, platform)
	protected.GET("/clubs/:id", r.Clubs.GetClub)
	protected.DELETE("/clubs/:id", r.Clubs.DeleteClub, platform)
	protected.GET("/clubs/:id/audit-events", r.Audit.ListClubAuditLogs, admins)
}
