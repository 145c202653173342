package security

import "time"

// NewTestTokenCodec returns a TokenCodec with fixed secrets and the default lifetimes.
// For unit tests only. Callers must not use in production.
func NewTestTokenCodec() *TokenCodec {
	c, err := NewTokenCodec(CodecConfig{
		AccessSecret:            []byte("test-access-secret"),
		AccessTTL:               15 * time.Minute,
		RefreshSecret:           []byte("test-refresh-secret"),
		RefreshTTL:              7 * 24 * time.Hour,
		EmailVerificationSecret: []byte("test-confirm-email-secret"),
		EmailVerificationTTL:    24 * time.Hour,
	})
	if err != nil {
		panic(err)
	}
	return c
}

// SetNow overrides the codec clock. For tests that need to move time forward.
func (c *TokenCodec) SetNow(f func() time.Time) {
	c.nowF = f
}
