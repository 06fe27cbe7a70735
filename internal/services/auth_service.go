package services

import (
	"context"
	"errors"
	"time"

	"clubhub/internal/audit"
	"clubhub/internal/caching"
	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/internal/repositories"
	"clubhub/internal/security"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionSigner issues session tokens.
type SessionSigner interface {
	IssueSessionToken(userID uuid.UUID, role models.Role, clubID *uuid.UUID) (string, time.Time, error)
}

// CredentialHasher covers every slow-hash operation the auth flows need.
type CredentialHasher interface {
	IssueOpaqueToken(validity time.Duration) (*security.OpaqueToken, error)
	VerifyOpaqueToken(raw, storedHash string, expiresAt time.Time) bool
	HashPassword(password string) (string, error)
	CheckPassword(hash *string, password string) bool
}

// AuthService handles password login.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.AuthResult, error)
}

type LoginLimit struct {
	Attempts int
	Window   time.Duration
}

type authService struct {
	users    repositories.UserRepository
	hasher   CredentialHasher
	sessions SessionSigner
	limiter  caching.RateLimiter
	sink     audit.Sink
	limit    LoginLimit
	now      func() time.Time
}

func NewAuthService(users repositories.UserRepository, hasher CredentialHasher, sessions SessionSigner,
	limiter caching.RateLimiter, sink audit.Sink, limit LoginLimit) AuthService {
	return &authService{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		limiter:  limiter,
		sink:     sink,
		limit:    limit,
		now:      time.Now,
	}
}

func loginLimitKey(email string) string {
	return "login:" + email
}

// Login never says whether the email exists. Unknown emails, missing
// passwords and wrong passwords all yield ErrUnauthenticated after the same
// bcrypt work. A deactivated account is only reported once the password
// has been proven.
func (s *authService) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	email, err := common.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, common.NewValidationError("password", "is required")
	}

	if s.limit.Attempts > 0 {
		limited, err := s.limiter.IsRateLimited(ctx, loginLimitKey(email), s.limit.Attempts, s.limit.Window)
		if err != nil {
			zap.L().Warn("login rate limiter unavailable", zap.Error(err))
		} else if limited {
			return nil, common.ErrRateLimited
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		s.hasher.CheckPassword(nil, password)
		s.sink.Record(ctx, models.AuditEvent{Action: models.AuditLoginFailed})
		return nil, common.ErrUnauthenticated
	}

	if !s.hasher.CheckPassword(user.PasswordHash, password) {
		s.sink.Record(ctx, audit.Event(models.AuditLoginFailed, nil, nil, user))
		return nil, common.ErrUnauthenticated
	}
	if !user.IsActive {
		return nil, common.ErrForbidden
	}
	if user.Role.IsTenantScoped() && user.ClubID == nil {
		zap.L().Error("tenant user has no club", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
		return nil, common.ErrInternalInconsistency
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		zap.L().Warn("failed to record last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	if s.limit.Attempts > 0 {
		if err := s.limiter.Reset(ctx, loginLimitKey(email)); err != nil {
			zap.L().Warn("failed to reset login rate limit", zap.Error(err))
		}
	}

	result, err := newAuthResult(s.sessions, user)
	if err != nil {
		return nil, err
	}
	s.sink.Record(ctx, audit.Event(models.AuditLoginSucceeded, &user.ID, user.ClubID, user))
	return result, nil
}

func newAuthResult(sessions SessionSigner, user *models.User) (*models.AuthResult, error) {
	token, expiresAt, err := sessions.IssueSessionToken(user.ID, user.Role, user.ClubID)
	if err != nil {
		return nil, err
	}
	return &models.AuthResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		User:      user.View(),
	}, nil
}

// actorOf returns the ids recorded as the actor of an audit event.
func actorOf(tc *common.TenantContext) (*uuid.UUID, *uuid.UUID) {
	if tc == nil {
		return nil, nil
	}
	id := tc.UserID
	return &id, tc.ClubID
}
