package security

import (
	"errors"
	"fmt"
	"time"

	"clubhub/internal/common"
	"clubhub/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MinSigningKeyLength is the shortest HMAC key accepted at startup.
const MinSigningKeyLength = 32

const DefaultSessionTTL = time.Hour

var (
	ErrSigningKeyMissing  = errors.New("session signing key is not configured")
	ErrSigningKeyTooShort = fmt.Errorf("session signing key must be at least %d bytes", MinSigningKeyLength)
)

// SessionClaims are the claims carried by a session token. The role and club
// are informational; the identity resolver re-reads both from the database.
type SessionClaims struct {
	UserID string  `json:"user_id"`
	Role   string  `json:"role"`
	ClubID *string `json:"club_id,omitempty"`
	jwt.RegisteredClaims
}

type SessionConfig struct {
	SigningKey string
	TTL        time.Duration
	Issuer     string
}

// SessionIssuer signs and verifies HS256 session tokens.
type SessionIssuer struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewSessionIssuer fails when the key is absent or too short so that a
// misconfigured deployment never starts.
func NewSessionIssuer(cfg SessionConfig) (*SessionIssuer, error) {
	if cfg.SigningKey == "" {
		return nil, ErrSigningKeyMissing
	}
	if len(cfg.SigningKey) < MinSigningKeyLength {
		return nil, ErrSigningKeyTooShort
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "clubhub"
	}
	return &SessionIssuer{
		key:    []byte(cfg.SigningKey),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// IssueSessionToken signs a token for userID and returns it with its expiry.
func (s *SessionIssuer) IssueSessionToken(userID uuid.UUID, role models.Role, clubID *uuid.UUID) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := SessionClaims{
		UserID: userID.String(),
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	if clubID != nil {
		id := clubID.String()
		claims.ClubID = &id
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifySessionToken checks signature, algorithm, issuer and expiry. Every
// failure is reported to the caller as ErrUnauthenticated; the reason is
// only logged.
func (s *SessionIssuer) VerifySessionToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			zap.L().Debug("session token expired")
		} else {
			zap.L().Debug("session token rejected", zap.Error(err))
		}
		return nil, common.ErrUnauthenticated
	}
	if !token.Valid {
		return nil, common.ErrUnauthenticated
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		zap.L().Debug("session token has malformed subject")
		return nil, common.ErrUnauthenticated
	}
	return claims, nil
}

// SubjectID returns the user id carried by the claims.
func (c *SessionClaims) SubjectID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, common.ErrUnauthenticated
	}
	return id, nil
}

// TTL returns the configured session lifetime.
func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}
