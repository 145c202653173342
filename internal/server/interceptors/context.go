package interceptors

import (
	"context"

	"authgate/backend/internal/security"
)

type contextKey struct{ name string }

var (
	userIDKey    = contextKey{"user_id"}
	sessionIDKey = contextKey{"session_id"}
	roleKey      = contextKey{"role"}
	claimsKey    = contextKey{"access_claims"}
)

// WithIdentity returns a context with user_id, session_id and role set.
// Handlers read these via GetUserID, GetSessionID, GetRole.
func WithIdentity(ctx context.Context, userID, sessionID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	ctx = context.WithValue(ctx, roleKey, role)
	return ctx
}

// WithClaims stores validated access claims and the identity derived from them.
func WithClaims(ctx context.Context, claims *security.AccessClaims) context.Context {
	ctx = WithIdentity(ctx, claims.Subject, claims.SessionID, claims.Role)
	return context.WithValue(ctx, claimsKey, claims)
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// GetSessionID returns the session_id from context and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok
}

// GetRole returns the caller's role from context and true if set; otherwise "", false.
func GetRole(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(roleKey).(string)
	return v, ok
}

// GetClaims returns the validated access claims, or nil for unauthenticated calls.
func GetClaims(ctx context.Context) *security.AccessClaims {
	c, _ := ctx.Value(claimsKey).(*security.AccessClaims)
	return c
}
