package domain

import "time"

// AuditLog represents an audit event.
type AuditLog struct {
	ID        string
	UserID    string
	SessionID string
	Action    string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Security-relevant actions recorded by the auth service.
const (
	ActionRegister             = "register"
	ActionSigninSuccess        = "signin_success"
	ActionSigninFailure        = "signin_failure"
	ActionRefresh              = "refresh"
	ActionRefreshHashMismatch  = "refresh_hash_mismatch"
	ActionLogout               = "logout"
	ActionEmailVerified        = "email_verified"
	ActionEmailVerifyRejected  = "email_verify_rejected"
	ActionUserDeleted          = "user_deleted"
)
