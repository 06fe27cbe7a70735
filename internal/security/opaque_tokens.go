package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"clubhub/internal/common"

	"golang.org/x/crypto/bcrypt"
)

// OpaqueTokenBytes is the entropy of every single-use token. The wire form
// is the lower-case hex encoding, so always OpaqueTokenLength characters.
const (
	OpaqueTokenBytes  = 32
	OpaqueTokenLength = OpaqueTokenBytes * 2
)

// OpaqueToken is a freshly issued single-use token. Raw is handed to the
// recipient once; only Hash and ExpiresAt are stored.
type OpaqueToken struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

// TokenHasher hashes and compares opaque tokens and passwords. The bcrypt
// cost is configurable so tests can run at the minimum.
type TokenHasher struct {
	cost int
	now  func() time.Time
}

func NewTokenHasher(cost int) *TokenHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &TokenHasher{cost: cost, now: time.Now}
}

// IssueOpaqueToken generates a random token valid for validity from now.
func (h *TokenHasher) IssueOpaqueToken(validity time.Duration) (*OpaqueToken, error) {
	buf := make([]byte, OpaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	raw := hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash token: %w", err)
	}

	return &OpaqueToken{
		Raw:       raw,
		Hash:      string(hash),
		ExpiresAt: h.now().Add(validity),
	}, nil
}

// VerifyOpaqueToken reports whether raw matches storedHash and the token has
// not yet expired. Both conditions are required and the result does not say
// which one failed.
func (h *TokenHasher) VerifyOpaqueToken(raw, storedHash string, expiresAt time.Time) bool {
	if ValidateOpaqueTokenFormat(raw) != nil || storedHash == "" {
		return false
	}
	hashOK := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(raw)) == nil
	fresh := h.now().Before(expiresAt)
	return hashOK && fresh
}

// ValidateOpaqueTokenFormat rejects anything that is not exactly
// OpaqueTokenLength lower-case hex characters, before any storage access.
func ValidateOpaqueTokenFormat(raw string) error {
	if len(raw) != OpaqueTokenLength {
		return common.ErrInvalidToken
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return common.ErrInvalidToken
		}
	}
	return nil
}
