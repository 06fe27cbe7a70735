package security

import (
	"strings"
	"testing"
	"time"

	"clubhub/internal/common"
	"clubhub/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func newTestIssuer(t *testing.T) *SessionIssuer {
	t.Helper()
	issuer, err := NewSessionIssuer(SessionConfig{SigningKey: testSigningKey, TTL: time.Hour, Issuer: "clubhub-test"})
	require.NoError(t, err)
	return issuer
}

func TestNewSessionIssuer_RejectsWeakKeys(t *testing.T) {
	_, err := NewSessionIssuer(SessionConfig{})
	assert.ErrorIs(t, err, ErrSigningKeyMissing)

	_, err = NewSessionIssuer(SessionConfig{SigningKey: "short"})
	assert.ErrorIs(t, err, ErrSigningKeyTooShort)
}

func TestNewSessionIssuer_DefaultsTTL(t *testing.T) {
	issuer, err := NewSessionIssuer(SessionConfig{SigningKey: testSigningKey})
	require.NoError(t, err)
	assert.Equal(t, DefaultSessionTTL, issuer.TTL())
}

func TestSessionToken_RoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)
	userID := uuid.New()
	clubID := uuid.New()

	token, expiresAt, err := issuer.IssueSessionToken(userID, models.RoleCoach, &clubID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := issuer.VerifySessionToken(token)
	require.NoError(t, err)

	sub, err := claims.SubjectID()
	require.NoError(t, err)
	assert.Equal(t, userID, sub)
	assert.Equal(t, "COACH", claims.Role)
	require.NotNil(t, claims.ClubID)
	assert.Equal(t, clubID.String(), *claims.ClubID)
}

func TestSessionToken_PlatformAdminOmitsClub(t *testing.T) {
	issuer := newTestIssuer(t)

	token, _, err := issuer.IssueSessionToken(uuid.New(), models.RolePlatformAdmin, nil)
	require.NoError(t, err)

	claims, err := issuer.VerifySessionToken(token)
	require.NoError(t, err)
	assert.Nil(t, claims.ClubID)
}

func TestVerifySessionToken_Expired(t *testing.T) {
	issuer := newTestIssuer(t)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := issuer.IssueSessionToken(uuid.New(), models.RolePlayer, nil)
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.VerifySessionToken(token)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestVerifySessionToken_WrongKey(t *testing.T) {
	issuer := newTestIssuer(t)
	other, err := NewSessionIssuer(SessionConfig{SigningKey: strings.Repeat("z", 32), Issuer: "clubhub-test"})
	require.NoError(t, err)

	token, _, err := other.IssueSessionToken(uuid.New(), models.RolePlayer, nil)
	require.NoError(t, err)

	_, err = issuer.VerifySessionToken(token)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestVerifySessionToken_WrongIssuer(t *testing.T) {
	issuer := newTestIssuer(t)
	other, err := NewSessionIssuer(SessionConfig{SigningKey: testSigningKey, Issuer: "someone-else"})
	require.NoError(t, err)

	token, _, err := other.IssueSessionToken(uuid.New(), models.RolePlayer, nil)
	require.NoError(t, err)

	_, err = issuer.VerifySessionToken(token)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestVerifySessionToken_RejectsNoneAlgorithm(t *testing.T) {
	issuer := newTestIssuer(t)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "clubhub-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.VerifySessionToken(unsigned)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestVerifySessionToken_Garbage(t *testing.T) {
	issuer := newTestIssuer(t)
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := issuer.VerifySessionToken(token)
		assert.ErrorIs(t, err, common.ErrUnauthenticated, token)
	}
}
