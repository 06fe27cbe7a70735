package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"clubhub/internal/audit"
	"clubhub/internal/caching"
	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/internal/notify"
	"clubhub/internal/repositories"
	"clubhub/internal/security"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxNameLength = 100
	// dispatchTimeout bounds handing a message to the dispatcher, not its delivery.
	dispatchTimeout = 5 * time.Second
)

// TokenTTLs are the lifetimes of each single-use token class.
type TokenTTLs struct {
	Invite      time.Duration
	Verify      time.Duration
	SetPassword time.Duration
	Reset       time.Duration
}

// DefaultTokenTTLs returns the standard lifetimes.
func DefaultTokenTTLs() TokenTTLs {
	return TokenTTLs{
		Invite:      72 * time.Hour,
		Verify:      24 * time.Hour,
		SetPassword: 72 * time.Hour,
		Reset:       60 * time.Minute,
	}
}

type CredentialConfig struct {
	TTLs          TokenTTLs
	AllowedTiers  []models.SubscriptionTier
	ResetRequests int
	ResetWindow   time.Duration
}

// ErrNoAllowedTiers is returned when no subscription tier is open to
// self-service registration.
var ErrNoAllowedTiers = errors.New("at least one allowed subscription tier is required")

// CredentialService runs the token based onboarding and recovery flows.
// It works on the system executor because its callers are either not yet
// authenticated or acting as administrators across the tenant boundary.
type CredentialService interface {
	InviteUser(ctx context.Context, actor *common.TenantContext, req *InviteUserRequest) (*models.UserView, error)
	ResendInvite(ctx context.Context, actor *common.TenantContext, userID uuid.UUID) error
	AcceptInvite(ctx context.Context, req *AcceptInviteRequest) (*models.AuthResult, error)

	RegisterClub(ctx context.Context, req *RegisterClubRequest) (*RegisterClubResult, error)
	VerifyEmail(ctx context.Context, userID uuid.UUID, token string) error
	ResendVerification(ctx context.Context, userID uuid.UUID) error

	IssueSetPassword(ctx context.Context, actor *common.TenantContext, userID uuid.UUID) error
	SetPassword(ctx context.Context, req *TokenPasswordRequest) (*models.AuthResult, error)

	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req *TokenPasswordRequest) (*models.AuthResult, error)
}

type InviteUserRequest struct {
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	ClubID    *uuid.UUID `json:"club_id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
}

type AcceptInviteRequest struct {
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Password  string    `json:"password"`
}

type RegisterClubRequest struct {
	ClubName  string `json:"club_name"`
	Subdomain string `json:"subdomain"`
	Tier      string `json:"subscription_tier"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type RegisterClubResult struct {
	Club *models.Club       `json:"club"`
	Auth *models.AuthResult `json:"auth"`
}

// TokenPasswordRequest redeems a set-password or reset token.
type TokenPasswordRequest struct {
	UserID   uuid.UUID `json:"user_id"`
	Token    string    `json:"token"`
	Password string    `json:"password"`
}

type credentialService struct {
	users      repositories.UserRepository
	clubs      repositories.ClubRepository
	hasher     CredentialHasher
	sessions   SessionSigner
	dispatcher notify.Dispatcher
	links      *notify.LinkBuilder
	sink       audit.Sink
	limiter    caching.RateLimiter
	cfg        CredentialConfig
}

func NewCredentialService(users repositories.UserRepository, clubs repositories.ClubRepository,
	hasher CredentialHasher, sessions SessionSigner, dispatcher notify.Dispatcher, links *notify.LinkBuilder,
	sink audit.Sink, limiter caching.RateLimiter, cfg CredentialConfig) (CredentialService, error) {
	if len(cfg.AllowedTiers) == 0 {
		return nil, ErrNoAllowedTiers
	}
	return &credentialService{
		users:      users,
		clubs:      clubs,
		hasher:     hasher,
		sessions:   sessions,
		dispatcher: dispatcher,
		links:      links,
		sink:       sink,
		limiter:    limiter,
		cfg:        cfg,
	}, nil
}

func (s *credentialService) verifier(raw string) func(models.TokenSlot) bool {
	return func(slot models.TokenSlot) bool {
		return s.hasher.VerifyOpaqueToken(raw, *slot.Hash, *slot.ExpiresAt)
	}
}

// send hands the message to the dispatcher. It runs after the mutation has
// committed and a failure only gets logged.
func (s *credentialService) send(ctx context.Context, user *models.User, kind notify.MessageKind, tok *security.OpaqueToken, clubName string) {
	msg := notify.Message{
		To:            user.Email,
		Kind:          kind,
		RecipientName: user.FirstName,
		ClubName:      clubName,
		Link:          s.links.Build(kind, user.ID, tok.Raw),
		ExpiresAt:     tok.ExpiresAt,
	}
	// Survives request cancellation, bounded by dispatchTimeout.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
	defer cancel()
	if err := s.dispatcher.Dispatch(dctx, msg); err != nil {
		zap.L().Error("failed to dispatch notification",
			zap.String("kind", string(kind)), zap.String("user_id", user.ID.String()), zap.Error(err))
	}
}

func (s *credentialService) clubName(ctx context.Context, clubID *uuid.UUID) string {
	if clubID == nil {
		return ""
	}
	club, err := s.clubs.GetByID(ctx, *clubID)
	if err != nil {
		zap.L().Warn("failed to load club for notification", zap.String("club_id", clubID.String()), zap.Error(err))
		return ""
	}
	return club.Name
}

func validateNames(first, last string) (string, string, error) {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	if err := common.ValidateRequiredString(first, "first_name", maxNameLength); err != nil {
		return "", "", err
	}
	if err := common.ValidateRequiredString(last, "last_name", maxNameLength); err != nil {
		return "", "", err
	}
	return first, last, nil
}

// loadManagedUser fetches a user the actor administers. Users outside the
// actor's club are reported as not found.
func (s *credentialService) loadManagedUser(ctx context.Context, actor *common.TenantContext, userID uuid.UUID) (*models.User, error) {
	if actor == nil {
		return nil, common.ErrNoTenantContext
	}
	if !actor.IsPlatformAdmin() && actor.Role != models.RoleClubAdmin {
		return nil, common.ErrForbidden
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !actor.IsPlatformAdmin() && (user.ClubID == nil || !actor.CanAccessClub(*user.ClubID)) {
		return nil, common.ErrNotFound
	}
	return user, nil
}

func (s *credentialService) InviteUser(ctx context.Context, actor *common.TenantContext, req *InviteUserRequest) (*models.UserView, error) {
	if actor == nil {
		return nil, common.ErrNoTenantContext
	}
	email, err := common.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	role, err := models.ParseRole(strings.ToUpper(strings.TrimSpace(req.Role)))
	if err != nil || !models.InvitableRoles.Contains(role) {
		return nil, common.NewValidationError("role", "is not an invitable role")
	}
	first, last := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	if len(first) > maxNameLength || len(last) > maxNameLength {
		return nil, common.NewValidationError("name", "is too long")
	}

	var clubID uuid.UUID
	switch {
	case actor.IsPlatformAdmin():
		if req.ClubID == nil {
			return nil, common.NewValidationError("club_id", "is required")
		}
		clubID = *req.ClubID
	case actor.Role == models.RoleClubAdmin && actor.ClubID != nil:
		if req.ClubID != nil && *req.ClubID != *actor.ClubID {
			return nil, common.ErrForbidden
		}
		clubID = *actor.ClubID
	default:
		return nil, common.ErrForbidden
	}

	club, err := s.clubs.GetByID(ctx, clubID)
	if err != nil {
		return nil, err
	}

	tok, err := s.hasher.IssueOpaqueToken(s.cfg.TTLs.Invite)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:               uuid.New(),
		Email:            email,
		Role:             role,
		ClubID:           &club.ID,
		IsActive:         false,
		InvitationStatus: models.InvitationPending,
		FirstName:        first,
		LastName:         last,
	}
	issue := &repositories.TokenIssue{Kind: models.TokenInvite, Hash: tok.Hash, ExpiresAt: tok.ExpiresAt}
	if err := s.users.Create(ctx, user, issue); err != nil {
		return nil, err
	}

	s.send(ctx, user, notify.KindInvite, tok, club.Name)
	actorID, actorClub := actorOf(actor)
	s.sink.Record(ctx, audit.Event(models.AuditUserInvited, actorID, actorClub, user))
	return user.View(), nil
}

func (s *credentialService) ResendInvite(ctx context.Context, actor *common.TenantContext, userID uuid.UUID) error {
	user, err := s.loadManagedUser(ctx, actor, userID)
	if err != nil {
		return err
	}
	if user.InvitationStatus != models.InvitationPending {
		return &common.ConflictError{Constraint: "invitation_not_pending"}
	}

	tok, err := s.hasher.IssueOpaqueToken(s.cfg.TTLs.Invite)
	if err != nil {
		return err
	}
	if err := s.users.SetToken(ctx, user.ID, repositories.TokenIssue{Kind: models.TokenInvite, Hash: tok.Hash, ExpiresAt: tok.ExpiresAt}); err != nil {
		return err
	}

	s.send(ctx, user, notify.KindInvite, tok, s.clubName(ctx, user.ClubID))
	actorID, actorClub := actorOf(actor)
	s.sink.Record(ctx, audit.Event(models.AuditInviteResent, actorID, actorClub, user))
	return nil
}

func (s *credentialService) AcceptInvite(ctx context.Context, req *AcceptInviteRequest) (*models.AuthResult, error) {
	if err := security.ValidateOpaqueTokenFormat(req.Token); err != nil {
		return nil, err
	}
	first, last, err := validateNames(req.FirstName, req.LastName)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.ConsumeToken(ctx, req.UserID, repositories.TokenConsumption{
		Kind:             models.TokenInvite,
		Verify:           s.verifier(req.Token),
		PasswordHash:     &hash,
		FirstName:        &first,
		LastName:         &last,
		Activate:         true,
		AcceptInvitation: true,
		VerifyEmail:      true,
	})
	if err != nil {
		return nil, err
	}

	s.sink.Record(ctx, audit.Event(models.AuditInviteAccepted, &user.ID, user.ClubID, user))
	return newAuthResult(s.sessions, user)
}

func (s *credentialService) tierAllowed(tier models.SubscriptionTier) bool {
	for _, allowed := range s.cfg.AllowedTiers {
		if allowed == tier {
			return true
		}
	}
	return false
}

// RegisterClub creates a club with its first administrator. The admin is
// active straight away but must still verify their email.
func (s *credentialService) RegisterClub(ctx context.Context, req *RegisterClubRequest) (*RegisterClubResult, error) {
	name := strings.TrimSpace(req.ClubName)
	if err := common.ValidateRequiredString(name, "club_name", 200); err != nil {
		return nil, err
	}
	subdomain, err := models.NormalizeSubdomain(req.Subdomain)
	if err != nil {
		return nil, common.NewValidationError("subdomain", err.Error())
	}
	tier := models.TierFree
	if strings.TrimSpace(req.Tier) != "" {
		tier, err = models.ParseSubscriptionTier(req.Tier)
		if err != nil {
			return nil, common.NewValidationError("subscription_tier", "is not a known tier")
		}
	}
	if !s.tierAllowed(tier) {
		return nil, common.NewValidationError("subscription_tier", "is not offered")
	}
	email, err := common.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	first, last, err := validateNames(req.FirstName, req.LastName)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	status := models.SubscriptionTrialing
	if tier == models.TierFree {
		status = models.SubscriptionActive
	}
	club := &models.Club{
		ID:                 uuid.New(),
		Name:               name,
		Subdomain:          subdomain,
		IsActive:           true,
		SubscriptionTier:   tier,
		SubscriptionStatus: status,
	}
	admin := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: &hash,
		Role:         models.RoleClubAdmin,
		ClubID:       &club.ID,
		IsActive:     true,
		FirstName:    first,
		LastName:     last,
	}

	tok, err := s.hasher.IssueOpaqueToken(s.cfg.TTLs.Verify)
	if err != nil {
		return nil, err
	}
	issue := &repositories.TokenIssue{Kind: models.TokenEmailVerification, Hash: tok.Hash, ExpiresAt: tok.ExpiresAt}
	if err := s.clubs.CreateWithAdmin(ctx, club, admin, issue); err != nil {
		return nil, err
	}

	s.send(ctx, admin, notify.KindEmailVerification, tok, club.Name)
	event := audit.Event(models.AuditClubRegistered, &admin.ID, &club.ID, admin)
	event.Detail = map[string]any{"subdomain": club.Subdomain, "tier": string(club.SubscriptionTier)}
	s.sink.Record(ctx, event)

	auth, err := newAuthResult(s.sessions, admin)
	if err != nil {
		return nil, err
	}
	return &RegisterClubResult{Club: club, Auth: auth}, nil
}

// VerifyEmail succeeds without touching the row when the address is already
// verified, including when a concurrent call won the race.
func (s *credentialService) VerifyEmail(ctx context.Context, userID uuid.UUID, token string) error {
	if err := security.ValidateOpaqueTokenFormat(token); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidToken
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}

	user, err = s.users.ConsumeToken(ctx, userID, repositories.TokenConsumption{
		Kind:        models.TokenEmailVerification,
		Verify:      s.verifier(token),
		VerifyEmail: true,
	})
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			if current, getErr := s.users.GetByID(ctx, userID); getErr == nil && current.EmailVerified {
				return nil
			}
		}
		return err
	}

	s.sink.Record(ctx, audit.Event(models.AuditEmailVerified, &user.ID, user.ClubID, user))
	return nil
}

func (s *credentialService) ResendVerification(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}
	if s.cfg.ResetRequests > 0 {
		limited, err := s.limiter.IsRateLimited(ctx, "verify:"+user.ID.String(), s.cfg.ResetRequests, s.cfg.ResetWindow)
		if err != nil {
			zap.L().Warn("verification rate limiter unavailable", zap.Error(err))
		} else if limited {
			return common.ErrRateLimited
		}
	}

	tok, err := s.hasher.IssueOpaqueToken(s.cfg.TTLs.Verify)
	if err != nil {
		return err
	}
	if err := s.users.SetToken(ctx, user.ID, repositories.TokenIssue{Kind: models.TokenEmailVerification, Hash: tok.Hash, ExpiresAt: tok.ExpiresAt}); err != nil {
		return err
	}

	s.send(ctx, user, notify.KindEmailVerification, tok, s.clubName(ctx, user.ClubID))
	s.sink.Record(ctx, audit.Event(models.AuditVerificationResent, &user.ID, user.ClubID, user))
	return nil
}

func (s *credentialService) IssueSetPassword(ctx context.Context, actor *common.TenantContext, userID uuid.UUID) error {
	user, err := s.loadManagedUser(ctx, actor, userID)
	if err != nil {
		return err
	}

	tok, err := s.hasher.IssueOpaqueToken(s.cfg.TTLs.SetPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetToken(ctx, user.ID, repositories.TokenIssue{Kind: models.TokenSetPassword, Hash: tok.Hash, ExpiresAt: tok.ExpiresAt}); err != nil {
		return err
	}

	s.send(ctx, user, notify.KindSetPassword, tok, s.clubName(ctx, user.ClubID))
	actorID, actorClub := actorOf(actor)
	s.sink.Record(ctx, audit.Event(models.AuditSetPasswordIssued, actorID, actorClub, user))
	return nil
}

func (s *credentialService) SetPassword(ctx context.Context, req *TokenPasswordRequest) (*models.AuthResult, error) {
	if err := security.ValidateOpaqueTokenFormat(req.Token); err != nil {
		return nil, err
	}
	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.ConsumeToken(ctx, req.UserID, repositories.TokenConsumption{
		Kind:             models.TokenSetPassword,
		Verify:           s.verifier(req.Token),
		PasswordHash:     &hash,
		Activate:         true,
		AcceptInvitation: true,
		VerifyEmail:      true,
	})
	if err != nil {
		return nil, err
	}

	s.sink.Record(ctx, audit.Event(models.AuditPasswordSet, &user.ID, user.ClubID, user))
	return newAuthResult(s.sessions, user)
}

// RequestPasswordReset returns nil for every well-formed address, whether
// or not an account exists, is active, or the caller was rate limited.
// Failures past input validation are logged, never returned.
func (s *credentialService) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := common.NormalizeEmail(email)
	if err != nil {
		return err
	}

	if s.cfg.ResetRequests > 0 {
		limited, err := s.limiter.IsRateLimited(ctx, "reset:"+email, s.cfg.ResetRequests, s.cfg.ResetWindow)
		if err != nil {
			zap.L().Warn("reset rate limiter unavailable", zap.Error(err))
		} else if limited {
			zap.L().Info("password reset request rate limited")
			return nil
		}
	}

	tok, err := s.hasher.IssueOpaqueToken(s.cfg.TTLs.Reset)
	if err != nil {
		zap.L().Error("failed to issue reset token", zap.Error(err))
		return nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			zap.L().Error("password reset lookup failed", zap.Error(err))
		}
		return nil
	}
	if !user.IsActive || user.InvitationStatus == models.InvitationPending {
		return nil
	}

	if err := s.users.SetToken(ctx, user.ID, repositories.TokenIssue{Kind: models.TokenPasswordReset, Hash: tok.Hash, ExpiresAt: tok.ExpiresAt}); err != nil {
		zap.L().Error("failed to store reset token", zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil
	}

	s.send(ctx, user, notify.KindPasswordReset, tok, s.clubName(ctx, user.ClubID))
	s.sink.Record(ctx, audit.Event(models.AuditPasswordResetRequest, nil, nil, user))
	return nil
}

func (s *credentialService) ResetPassword(ctx context.Context, req *TokenPasswordRequest) (*models.AuthResult, error) {
	if err := security.ValidateOpaqueTokenFormat(req.Token); err != nil {
		return nil, err
	}
	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.ConsumeToken(ctx, req.UserID, repositories.TokenConsumption{
		Kind:          models.TokenPasswordReset,
		Verify:        s.verifier(req.Token),
		RequireActive: true,
		PasswordHash:  &hash,
		VerifyEmail:   true,
	})
	if err != nil {
		return nil, err
	}

	s.sink.Record(ctx, audit.Event(models.AuditPasswordReset, &user.ID, user.ClubID, user))
	if err := s.limiter.Reset(ctx, loginLimitKey(user.Email)); err != nil {
		zap.L().Warn("failed to reset login rate limit", zap.Error(err))
	}
	return newAuthResult(s.sessions, user)
}
