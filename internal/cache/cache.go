// Package cache provides the TTL key-value store used for the session denylist
// and pending email-verification tokens.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidTTL is returned by Set when ttl is not positive. Entries without
// an expiry are never written.
var ErrInvalidTTL = errors.New("cache: ttl must be positive")

// Store is a string key-value store with per-entry expiry. Implementations
// must be safe for concurrent use; an expired entry reads as missing.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns ok false if the key is missing or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Delete(ctx context.Context, key string) error
}

const (
	sessionBlacklistPrefix  = "auth:session-blacklist:"
	emailVerificationPrefix = "auth:email-verification:"
)

// SessionBlacklistKey is the denylist key for a logged-out session.
func SessionBlacklistKey(sessionID string) string {
	return sessionBlacklistPrefix + sessionID
}

// EmailVerificationKey is the key holding the pending verification token for a user.
func EmailVerificationKey(userID string) string {
	return emailVerificationPrefix + userID
}
