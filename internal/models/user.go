package models

import (
	"time"

	"github.com/google/uuid"
)

// InvitationStatus tracks where an invited account is in its onboarding.
// The empty value means the account was never invited.
type InvitationStatus string

const (
	InvitationNone     InvitationStatus = ""
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
)

// AccountStatus is the single canonical status of an account. It is derived
// from the stored flags and never persisted on its own.
type AccountStatus string

const (
	AccountPendingInvite       AccountStatus = "PENDING_INVITE"
	AccountPendingVerification AccountStatus = "PENDING_VERIFICATION"
	AccountActive              AccountStatus = "ACTIVE"
	AccountInactive            AccountStatus = "INACTIVE"
)

var accountStatusLabels = map[AccountStatus]string{
	AccountPendingInvite:       "Invitation pending",
	AccountPendingVerification: "Email not verified",
	AccountActive:              "Active",
	AccountInactive:            "Deactivated",
}

// Label returns the human readable form used by admin screens.
func (s AccountStatus) Label() string {
	if l, ok := accountStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

type User struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	Email            string           `json:"email" db:"email"`
	PasswordHash     *string          `json:"-" db:"password_hash"` // Never serialize in JSON
	Role             Role             `json:"role" db:"role"`
	ClubID           *uuid.UUID       `json:"club_id" db:"club_id"`
	IsActive         bool             `json:"is_active" db:"is_active"`
	EmailVerified    bool             `json:"email_verified" db:"email_verified"`
	InvitationStatus InvitationStatus `json:"invitation_status" db:"invitation_status"`
	FirstName        string           `json:"first_name" db:"first_name"`
	LastName         string           `json:"last_name" db:"last_name"`
	Phone            *string          `json:"phone" db:"phone"`
	LastLoginAt      *time.Time       `json:"last_login_at" db:"last_login_at"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// Status derives the canonical account status. An outstanding invitation
// wins over everything else, then deactivation, then email verification.
func (u *User) Status() AccountStatus {
	switch {
	case u.InvitationStatus == InvitationPending:
		return AccountPendingInvite
	case !u.IsActive:
		return AccountInactive
	case !u.EmailVerified:
		return AccountPendingVerification
	default:
		return AccountActive
	}
}

// HasPassword reports whether a password has ever been set.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// UserView is the sanitized representation returned to clients.
type UserView struct {
	ID               uuid.UUID        `json:"id"`
	Email            string           `json:"email"`
	Role             Role             `json:"role"`
	ClubID           *uuid.UUID       `json:"club_id,omitempty"`
	FirstName        string           `json:"first_name"`
	LastName         string           `json:"last_name"`
	Phone            *string          `json:"phone,omitempty"`
	IsActive         bool             `json:"is_active"`
	EmailVerified    bool             `json:"email_verified"`
	InvitationStatus InvitationStatus `json:"invitation_status,omitempty"`
	Status           AccountStatus    `json:"status"`
	StatusLabel      string           `json:"status_label"`
	LastLoginAt      *time.Time       `json:"last_login_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

func (u *User) View() *UserView {
	status := u.Status()
	return &UserView{
		ID:               u.ID,
		Email:            u.Email,
		Role:             u.Role,
		ClubID:           u.ClubID,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Phone:            u.Phone,
		IsActive:         u.IsActive,
		EmailVerified:    u.EmailVerified,
		InvitationStatus: u.InvitationStatus,
		Status:           status,
		StatusLabel:      status.Label(),
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
	}
}

// ProfileUpdate carries the self-service editable fields of a user.
type ProfileUpdate struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
}
