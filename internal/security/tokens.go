package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned when a token's signature is valid but exp has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned for any other verification failure (bad signature, wrong alg, garbage).
	ErrTokenMalformed = errors.New("token malformed")
	// ErrMissingSecret is returned by NewTokenCodec when a signing secret is empty.
	ErrMissingSecret = errors.New("token codec: signing secret must be set")
)

// Scope selects the secret and lifetime used to sign or verify a token.
type Scope int

const (
	ScopeAccess Scope = iota
	ScopeRefresh
	ScopeEmailVerification
)

func (s Scope) String() string {
	switch s {
	case ScopeAccess:
		return "access"
	case ScopeRefresh:
		return "refresh"
	case ScopeEmailVerification:
		return "email_verification"
	default:
		return "unknown"
	}
}

// AccessClaims holds JWT claims for the access token. Subject is the user id.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

// RefreshClaims holds JWT claims for the refresh token. Hash is the session's
// rotation secret at issue time.
type RefreshClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	Hash      string `json:"hash"`
}

// VerificationClaims holds JWT claims for the email-verification token. Subject is the user id.
type VerificationClaims struct {
	jwt.RegisteredClaims
}

// CodecConfig configures a TokenCodec. Each scope has its own secret and lifetime.
type CodecConfig struct {
	AccessSecret            []byte
	AccessTTL               time.Duration
	RefreshSecret           []byte
	RefreshTTL              time.Duration
	EmailVerificationSecret []byte
	EmailVerificationTTL    time.Duration
}

type scopeKey struct {
	secret []byte
	ttl    time.Duration
}

// TokenCodec issues and verifies HS256 JWTs for the access, refresh and
// email-verification scopes. It is stateless and safe for concurrent use.
type TokenCodec struct {
	scopes map[Scope]scopeKey
	nowF   func() time.Time
}

// NewTokenCodec returns a TokenCodec. All three secrets must be non-empty.
func NewTokenCodec(cfg CodecConfig) (*TokenCodec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 || len(cfg.EmailVerificationSecret) == 0 {
		return nil, ErrMissingSecret
	}
	return &TokenCodec{
		scopes: map[Scope]scopeKey{
			ScopeAccess:            {secret: cfg.AccessSecret, ttl: cfg.AccessTTL},
			ScopeRefresh:           {secret: cfg.RefreshSecret, ttl: cfg.RefreshTTL},
			ScopeEmailVerification: {secret: cfg.EmailVerificationSecret, ttl: cfg.EmailVerificationTTL},
		},
		nowF: time.Now,
	}, nil
}

// TTL returns the configured lifetime for scope.
func (c *TokenCodec) TTL(scope Scope) time.Duration {
	return c.scopes[scope].ttl
}

// IssueAccess signs an access token for the user, role and session.
func (c *TokenCodec) IssueAccess(userID, role, sessionID string) (token string, expiresAt time.Time, err error) {
	claims := &AccessClaims{Role: role, SessionID: sessionID}
	claims.Subject = userID
	expiresAt = c.stamp(ScopeAccess, &claims.RegisteredClaims)
	token, err = c.sign(ScopeAccess, claims)
	return token, expiresAt, err
}

// IssueRefresh signs a refresh token binding the session to its current rotation secret.
func (c *TokenCodec) IssueRefresh(sessionID, hash string) (token string, expiresAt time.Time, err error) {
	claims := &RefreshClaims{SessionID: sessionID, Hash: hash}
	expiresAt = c.stamp(ScopeRefresh, &claims.RegisteredClaims)
	token, err = c.sign(ScopeRefresh, claims)
	return token, expiresAt, err
}

// IssueEmailVerification signs an email-verification token for the user.
func (c *TokenCodec) IssueEmailVerification(userID string) (token string, expiresAt time.Time, err error) {
	claims := &VerificationClaims{}
	claims.Subject = userID
	expiresAt = c.stamp(ScopeEmailVerification, &claims.RegisteredClaims)
	token, err = c.sign(ScopeEmailVerification, claims)
	return token, expiresAt, err
}

// ValidateAccess verifies an access token. Returns ErrTokenExpired or ErrTokenMalformed on failure.
func (c *TokenCodec) ValidateAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(ScopeAccess, token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateRefresh verifies a refresh token. Returns ErrTokenExpired or ErrTokenMalformed on failure.
func (c *TokenCodec) ValidateRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(ScopeRefresh, token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateEmailVerification verifies an email-verification token.
func (c *TokenCodec) ValidateEmailVerification(token string) (*VerificationClaims, error) {
	claims := &VerificationClaims{}
	if err := c.parse(ScopeEmailVerification, token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *TokenCodec) stamp(scope Scope, rc *jwt.RegisteredClaims) time.Time {
	// JWT NumericDate has second precision; truncate so the returned expiry matches the claim.
	now := c.nowF().UTC().Truncate(time.Second)
	exp := now.Add(c.scopes[scope].ttl)
	rc.IssuedAt = jwt.NewNumericDate(now)
	rc.ExpiresAt = jwt.NewNumericDate(exp)
	return exp
}

func (c *TokenCodec) sign(scope Scope, claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.scopes[scope].secret)
}

func (c *TokenCodec) parse(scope Scope, tokenString string, claims jwt.Claims) error {
	secret := c.scopes[scope].secret
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.nowF),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenMalformed
	}
	if !token.Valid {
		return ErrTokenMalformed
	}
	return nil
}
