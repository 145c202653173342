package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	authv1 "authgate/backend/api/generated/auth/v1"
	"authgate/backend/internal/identity/service"
	"authgate/backend/internal/identity/validation"
	"authgate/backend/internal/logging"
	"authgate/backend/internal/security"
	"authgate/backend/internal/server/interceptors"
)

// AuthService is the auth service surface the handler needs.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*service.RegisterResult, error)
	Signin(ctx context.Context, email, password string) (*service.SigninResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error)
	Logout(ctx context.Context, claims *security.AccessClaims) error
	ValidateAccess(ctx context.Context, accessToken string) (*security.AccessClaims, error)
	VerifyEmail(ctx context.Context, token string) error
}

// AuthServer implements authv1.AuthServiceServer over the auth service.
type AuthServer struct {
	authv1.UnimplementedAuthServiceServer
	auth AuthService
	log  *zap.Logger
}

// NewAuthServer returns a new Auth gRPC server. If auth is nil, every method returns Unimplemented.
func NewAuthServer(auth AuthService, logger *zap.Logger) *AuthServer {
	return &AuthServer{auth: auth, log: logging.OrGlobal(logger).Named("auth.grpc")}
}

// Register creates an account and queues the verification email.
func (s *AuthServer) Register(ctx context.Context, req *authv1.RegisterRequest) (*authv1.RegisterResponse, error) {
	if s.auth == nil {
		return s.UnimplementedAuthServiceServer.Register(ctx, req)
	}
	res, err := s.auth.Register(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, "Register", err)
	}
	return &authv1.RegisterResponse{UserId: res.UserID}, nil
}

// Signin exchanges credentials for a new session's token pair.
func (s *AuthServer) Signin(ctx context.Context, req *authv1.SigninRequest) (*authv1.SigninResponse, error) {
	if s.auth == nil {
		return s.UnimplementedAuthServiceServer.Signin(ctx, req)
	}
	res, err := s.auth.Signin(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, "Signin", err)
	}
	return &authv1.SigninResponse{
		UserId:         res.UserID,
		AccessToken:    res.AccessToken,
		RefreshToken:   res.RefreshToken,
		TokenExpiresAt: res.TokenExpiresAt.UnixMilli(),
	}, nil
}

// Refresh rotates the refresh token.
func (s *AuthServer) Refresh(ctx context.Context, req *authv1.RefreshRequest) (*authv1.RefreshResponse, error) {
	if s.auth == nil {
		return s.UnimplementedAuthServiceServer.Refresh(ctx, req)
	}
	if err := validation.ValidateToken("refresh_token", req.RefreshToken); err != nil {
		return nil, s.toStatus(ctx, "Refresh", err)
	}
	pair, err := s.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.toStatus(ctx, "Refresh", err)
	}
	return &authv1.RefreshResponse{
		AccessToken:    pair.AccessToken,
		RefreshToken:   pair.RefreshToken,
		TokenExpiresAt: pair.TokenExpiresAt.UnixMilli(),
	}, nil
}

// Logout ends the session named by the caller's access token.
func (s *AuthServer) Logout(ctx context.Context, req *authv1.LogoutRequest) (*authv1.LogoutResponse, error) {
	if s.auth == nil {
		return s.UnimplementedAuthServiceServer.Logout(ctx, req)
	}
	claims := interceptors.GetClaims(ctx)
	if claims == nil {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}
	if err := s.auth.Logout(ctx, claims); err != nil {
		return nil, s.toStatus(ctx, "Logout", err)
	}
	return &authv1.LogoutResponse{}, nil
}

// ValidateAccess checks an access token on behalf of another service.
func (s *AuthServer) ValidateAccess(ctx context.Context, req *authv1.ValidateAccessRequest) (*authv1.ValidateAccessResponse, error) {
	if s.auth == nil {
		return s.UnimplementedAuthServiceServer.ValidateAccess(ctx, req)
	}
	if err := validation.ValidateToken("access_token", req.AccessToken); err != nil {
		return nil, s.toStatus(ctx, "ValidateAccess", err)
	}
	claims, err := s.auth.ValidateAccess(ctx, req.AccessToken)
	if err != nil {
		return nil, s.toStatus(ctx, "ValidateAccess", err)
	}
	resp := &authv1.ValidateAccessResponse{
		UserId:    claims.Subject,
		SessionId: claims.SessionID,
		Role:      claims.Role,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UnixMilli()
	}
	return resp, nil
}

// VerifyEmail confirms an email address.
func (s *AuthServer) VerifyEmail(ctx context.Context, req *authv1.VerifyEmailRequest) (*authv1.VerifyEmailResponse, error) {
	if s.auth == nil {
		return s.UnimplementedAuthServiceServer.VerifyEmail(ctx, req)
	}
	if err := validation.ValidateToken("token", req.Token); err != nil {
		return nil, s.toStatus(ctx, "VerifyEmail", err)
	}
	if err := s.auth.VerifyEmail(ctx, req.Token); err != nil {
		if isTokenError(err) || errors.Is(err, service.ErrVerificationTokenInvalid) {
			return nil, status.Error(codes.InvalidArgument, "invalid verification token")
		}
		return nil, s.toStatus(ctx, "VerifyEmail", err)
	}
	return &authv1.VerifyEmailResponse{Verified: true}, nil
}

// toStatus maps service errors to gRPC status. Internal errors are logged and returned without detail.
func (s *AuthServer) toStatus(ctx context.Context, method string, err error) error {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return status.Error(codes.InvalidArgument, verrs.Error())
	case errors.Is(err, service.ErrDuplicateUser):
		return status.Error(codes.AlreadyExists, "user already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case isTokenError(err),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrSessionHashMismatch),
		errors.Is(err, service.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	s.log.Error("auth rpc failed", zap.String("method", method), zap.Error(err))
	if ctx.Err() != nil {
		return status.FromContextError(ctx.Err()).Err()
	}
	return status.Error(codes.Internal, "internal error")
}

func isTokenError(err error) bool {
	return errors.Is(err, service.ErrTokenExpired) || errors.Is(err, service.ErrTokenMalformed)
}
