package models

import (
	"time"
)

// TokenKind identifies one class of single-use credential token.
type TokenKind string

const (
	TokenInvite            TokenKind = "invite"
	TokenEmailVerification TokenKind = "email_verification"
	TokenSetPassword       TokenKind = "set_password"
	TokenPasswordReset     TokenKind = "password_reset"
)

var tokenKinds = []TokenKind{TokenInvite, TokenEmailVerification, TokenSetPassword, TokenPasswordReset}

func (k TokenKind) IsValid() bool {
	for _, known := range tokenKinds {
		if k == known {
			return true
		}
	}
	return false
}

// AllTokenKinds returns every token class in a stable order.
func AllTokenKinds() []TokenKind {
	out := make([]TokenKind, len(tokenKinds))
	copy(out, tokenKinds)
	return out
}

// TokenSlot is the stored half of an opaque token: its hash and expiry.
// Both fields are nil when no token of that class is outstanding.
type TokenSlot struct {
	Hash      *string    `db:"hash"`
	ExpiresAt *time.Time `db:"expires_at"`
}

// IsEmpty reports whether the slot has no outstanding token.
func (s TokenSlot) IsEmpty() bool {
	return s.Hash == nil || s.ExpiresAt == nil
}

// AuthResult is returned by every flow that logs the user in.
type AuthResult struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *UserView `json:"user"`
}
