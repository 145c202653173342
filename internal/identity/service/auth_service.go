package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"authgate/backend/internal/audit"
	auditdomain "authgate/backend/internal/audit/domain"
	"authgate/backend/internal/cache"
	"authgate/backend/internal/identity/validation"
	"authgate/backend/internal/logging"
	"authgate/backend/internal/security"
	sessiondomain "authgate/backend/internal/session/domain"
	userdomain "authgate/backend/internal/user/domain"
	userrepo "authgate/backend/internal/user/repository"
)

// Sentinel errors for auth service; handler maps them to gRPC codes.
// Callers outside the service see uniform messages; logs keep the distinction.
var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrDuplicateUser            = errors.New("user already exists")
	ErrTokenExpired             = security.ErrTokenExpired
	ErrTokenMalformed           = security.ErrTokenMalformed
	ErrSessionNotFound          = errors.New("session not found")
	ErrSessionHashMismatch      = errors.New("session hash mismatch")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrVerificationTokenInvalid = errors.New("verification token invalid")
	ErrUserNotFound             = errors.New("user not found")
)

// SigninResult is returned by Signin.
type SigninResult struct {
	UserID string
	TokenPair
}

// TokenPair is a freshly issued access/refresh pair. TokenExpiresAt is the access token expiry.
type TokenPair struct {
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
}

// RegisterResult is returned by Register.
type RegisterResult struct {
	UserID string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) (bool, error)
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	CompareAndSwapHash(ctx context.Context, id, oldHash, newHash string) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) ([]string, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
	Compare(hash string, password []byte) error
	CompareDummy(password []byte)
}

// VerificationEnqueuer hands a verification email to the delivery pipeline.
type VerificationEnqueuer interface {
	EnqueueVerificationEmail(ctx context.Context, email, token string) error
}

// AuthService implements register, signin, refresh, logout, access validation and email verification.
type AuthService struct {
	users    UserRepo
	sessions SessionRepo
	hasher   PasswordHasher
	tokens   *security.TokenCodec
	store    cache.Store
	mailer   VerificationEnqueuer
	audit    audit.AuditLogger
	log      *zap.Logger
	tracer   trace.Tracer
	nowF     func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
// auditLogger and logger may be nil.
func NewAuthService(
	users UserRepo,
	sessions SessionRepo,
	hasher PasswordHasher,
	tokens *security.TokenCodec,
	store cache.Store,
	mailer VerificationEnqueuer,
	auditLogger audit.AuditLogger,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		store:    store,
		mailer:   mailer,
		audit:    auditLogger,
		log:      logging.OrGlobal(logger).Named("auth"),
		tracer:   otel.Tracer("authgate/identity"),
		nowF:     time.Now,
	}
}

// Register creates a USER with the given email and password and queues the
// verification email. The unique index on email is the final duplicate guard.
func (s *AuthService) Register(ctx context.Context, email, password string) (*RegisterResult, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Register")
	defer span.End()

	if err := validation.ValidateCredentials(validation.Credentials{Email: email, Password: password}); err != nil {
		return nil, err
	}
	email = userdomain.NormalizeEmail(email)
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("lookup user: %w", err))
	}
	if existing != nil {
		return nil, ErrDuplicateUser
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("hash password: %w", err))
	}
	now := s.nowF().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashed,
		Role:         userdomain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, userrepo.ErrDuplicateEmail) {
			return nil, ErrDuplicateUser
		}
		return nil, s.fail(span, fmt.Errorf("create user: %w", err))
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	token, _, err := s.tokens.IssueEmailVerification(user.ID)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("issue verification token: %w", err))
	}
	ttl := s.tokens.TTL(security.ScopeEmailVerification)
	if err := s.store.Set(ctx, cache.EmailVerificationKey(user.ID), token, ttl); err != nil {
		return nil, s.fail(span, fmt.Errorf("cache verification token: %w", err))
	}
	if err := s.mailer.EnqueueVerificationEmail(ctx, email, token); err != nil {
		return nil, s.fail(span, fmt.Errorf("enqueue verification email: %w", err))
	}
	s.logEvent(ctx, user.ID, "", auditdomain.ActionRegister, "")
	return &RegisterResult{UserID: user.ID}, nil
}

// Signin authenticates email and password, creates a session and returns a token pair.
func (s *AuthService) Signin(ctx context.Context, email, password string) (*SigninResult, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Signin")
	defer span.End()

	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	hash, err := security.NewRotationSecret()
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("rotation secret: %w", err))
	}
	now := s.nowF().UTC()
	sess := &sessiondomain.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Hash:      hash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	pair, err := s.issuePair(user, sess.ID, hash)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, s.fail(span, fmt.Errorf("create session: %w", err))
	}
	span.SetAttributes(attribute.String("user.id", user.ID), attribute.String("session.id", sess.ID))
	s.logEvent(ctx, user.ID, sess.ID, auditdomain.ActionSigninSuccess, "")
	return &SigninResult{UserID: user.ID, TokenPair: *pair}, nil
}

// authenticate returns the user for valid credentials. Unknown email and wrong
// password both return ErrInvalidCredentials after a bcrypt comparison.
func (s *AuthService) authenticate(ctx context.Context, email, password string) (*userdomain.User, error) {
	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		s.hasher.CompareDummy([]byte(password))
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		s.hasher.CompareDummy([]byte(password))
		s.log.Info("signin failed", zap.String("reason", "unknown_email"))
		s.logEvent(ctx, "", "", auditdomain.ActionSigninFailure, "unknown_email")
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		s.log.Info("signin failed", zap.String("reason", "wrong_password"), zap.String("user_id", user.ID))
		s.logEvent(ctx, user.ID, "", auditdomain.ActionSigninFailure, "wrong_password")
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Refresh rotates the session's secret and returns a new token pair. Exactly
// one of several concurrent refreshes with the same token succeeds; the rest
// get ErrSessionHashMismatch. A mismatch leaves the session in place.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	defer span.End()

	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", claims.SessionID))
	sess, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("load session: %w", err))
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if !security.SecretEqual(sess.Hash, claims.Hash) {
		s.hashMismatch(ctx, sess, "stale_hash")
		return nil, ErrSessionHashMismatch
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("load user: %w", err))
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}
	newHash, err := security.NewRotationSecret()
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("rotation secret: %w", err))
	}
	swapped, err := s.sessions.CompareAndSwapHash(ctx, sess.ID, claims.Hash, newHash)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("rotate session: %w", err))
	}
	if !swapped {
		s.hashMismatch(ctx, sess, "lost_race")
		return nil, ErrSessionHashMismatch
	}
	pair, err := s.issuePair(user, sess.ID, newHash)
	if err != nil {
		return nil, s.fail(span, err)
	}
	s.logEvent(ctx, user.ID, sess.ID, auditdomain.ActionRefresh, "")
	return pair, nil
}

// Logout denylists the session until its access token would expire and
// deletes the session. Calling it twice for the same session is harmless.
func (s *AuthService) Logout(ctx context.Context, claims *security.AccessClaims) error {
	ctx, span := s.tracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	if claims == nil || claims.SessionID == "" {
		return ErrUnauthorized
	}
	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Time.Sub(s.nowF())
	}
	// A token that has already expired cannot be replayed, so there is nothing to denylist.
	if ttl > 0 {
		if err := s.store.Set(ctx, cache.SessionBlacklistKey(claims.SessionID), "true", ttl); err != nil {
			return s.fail(span, fmt.Errorf("denylist session: %w", err))
		}
	}
	if err := s.sessions.Delete(ctx, claims.SessionID); err != nil {
		return s.fail(span, fmt.Errorf("delete session: %w", err))
	}
	s.logEvent(ctx, claims.Subject, claims.SessionID, auditdomain.ActionLogout, "")
	return nil
}

// DeleteUser soft-deletes the account and ends all of its sessions. Each
// session is denylisted for a full access TTL so tokens already handed out stop
// working immediately.
func (s *AuthService) DeleteUser(ctx context.Context, actorID, userID string) error {
	ctx, span := s.tracer.Start(ctx, "AuthService.DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	deleted, err := s.users.SoftDelete(ctx, userID, s.nowF().UTC())
	if err != nil {
		return s.fail(span, fmt.Errorf("soft delete user: %w", err))
	}
	if !deleted {
		return ErrUserNotFound
	}
	ids, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return s.fail(span, fmt.Errorf("delete sessions: %w", err))
	}
	ttl := s.tokens.TTL(security.ScopeAccess)
	for _, id := range ids {
		if err := s.store.Set(ctx, cache.SessionBlacklistKey(id), "true", ttl); err != nil {
			return s.fail(span, fmt.Errorf("denylist session: %w", err))
		}
	}
	s.log.Info("user deleted", zap.String("user_id", userID), zap.String("actor_id", actorID), zap.Int("sessions", len(ids)))
	s.logEvent(ctx, userID, "", auditdomain.ActionUserDeleted, "by="+actorID)
	return nil
}

// ValidateAccess verifies an access token and rejects denylisted sessions.
// Every failure, including a denylist lookup error, is ErrUnauthorized.
func (s *AuthService) ValidateAccess(ctx context.Context, accessToken string) (*security.AccessClaims, error) {
	claims, err := s.tokens.ValidateAccess(accessToken)
	if err != nil {
		s.log.Debug("access token rejected", zap.Error(err))
		return nil, ErrUnauthorized
	}
	_, revoked, err := s.store.Get(ctx, cache.SessionBlacklistKey(claims.SessionID))
	if err != nil {
		s.log.Error("denylist lookup failed", zap.String("session_id", claims.SessionID), zap.Error(err))
		return nil, ErrUnauthorized
	}
	if revoked {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// VerifyEmail confirms the user's email when token matches the one issued at registration.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	ctx, span := s.tracer.Start(ctx, "AuthService.VerifyEmail")
	defer span.End()

	claims, err := s.tokens.ValidateEmailVerification(token)
	if err != nil {
		return err
	}
	userID := claims.Subject
	key := cache.EmailVerificationKey(userID)
	cached, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return s.fail(span, fmt.Errorf("load verification token: %w", err))
	}
	if !ok || !security.SecretEqual(cached, token) {
		s.logEvent(ctx, userID, "", auditdomain.ActionEmailVerifyRejected, "")
		return ErrVerificationTokenInvalid
	}
	if err := s.users.MarkEmailVerified(ctx, userID, s.nowF().UTC()); err != nil {
		return s.fail(span, fmt.Errorf("mark email verified: %w", err))
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.log.Warn("delete verification token", zap.String("user_id", userID), zap.Error(err))
	}
	s.logEvent(ctx, userID, "", auditdomain.ActionEmailVerified, "")
	return nil
}

func (s *AuthService) issuePair(user *userdomain.User, sessionID, hash string) (*TokenPair, error) {
	access, accessExp, err := s.tokens.IssueAccess(user.ID, string(user.Role), sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, _, err := s.tokens.IssueRefresh(sessionID, hash)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenExpiresAt: accessExp}, nil
}

func (s *AuthService) hashMismatch(ctx context.Context, sess *sessiondomain.Session, reason string) {
	s.log.Warn("refresh token hash mismatch",
		zap.String("session_id", sess.ID),
		zap.String("user_id", sess.UserID),
		zap.String("reason", reason),
	)
	s.logEvent(ctx, sess.UserID, sess.ID, auditdomain.ActionRefreshHashMismatch, reason)
}

func (s *AuthService) logEvent(ctx context.Context, userID, sessionID, action, metadata string) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, userID, sessionID, action, metadata)
	}
}

func (s *AuthService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
