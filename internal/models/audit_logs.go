package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent describes a security-relevant action. Events are recorded
// after the action commits and their delivery is best effort.
type AuditEvent struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	Action       string         `json:"action" db:"action"`
	ActorUserID  *uuid.UUID     `json:"actor_user_id" db:"actor_user_id"`
	ActorClubID  *uuid.UUID     `json:"actor_club_id" db:"actor_club_id"`
	TargetUserID *uuid.UUID     `json:"target_user_id" db:"target_user_id"`
	TargetClubID *uuid.UUID     `json:"target_club_id" db:"target_club_id"`
	Detail       map[string]any `json:"detail,omitempty" db:"detail"`
	OccurredAt   time.Time      `json:"occurred_at" db:"occurred_at"`
}

// Action codes for audit events
const (
	AuditUserInvited          = "user.invited"
	AuditInviteResent         = "user.invite_resent"
	AuditInviteAccepted       = "user.invite_accepted"
	AuditClubRegistered       = "club.registered"
	AuditClubDeleted          = "club.deleted"
	AuditEmailVerified        = "user.email_verified"
	AuditVerificationResent   = "user.verification_resent"
	AuditSetPasswordIssued    = "user.set_password_issued"
	AuditPasswordSet          = "user.password_set"
	AuditPasswordResetRequest = "user.password_reset_requested"
	AuditPasswordReset        = "user.password_reset"
	AuditLoginSucceeded       = "auth.login_succeeded"
	AuditLoginFailed          = "auth.login_failed"
	AuditUserDeleted          = "user.deleted"
	AuditProfileUpdated       = "user.profile_updated"
	AuditAccessDenied         = "access.denied"
)
