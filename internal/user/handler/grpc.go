package handler

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	userv1 "authgate/backend/api/generated/user/v1"
	"authgate/backend/internal/identity/service"
	"authgate/backend/internal/logging"
	"authgate/backend/internal/server/interceptors"
	"authgate/backend/internal/user/domain"
)

// UserReader is the read side of the user repository.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// UserDeleter ends an account and all of its sessions.
type UserDeleter interface {
	DeleteUser(ctx context.Context, actorID, userID string) error
}

// Server implements UserService. GetUser and DeleteUser are admin-only; the
// policy interceptor enforces that before a call reaches here.
type Server struct {
	userv1.UnimplementedUserServiceServer
	users   UserReader
	deleter UserDeleter
	log     *zap.Logger
}

// NewServer returns a new User gRPC server. users may be nil; then all RPCs return Unimplemented.
// deleter may be nil; then DeleteUser returns Unimplemented.
func NewServer(users UserReader, deleter UserDeleter, logger *zap.Logger) *Server {
	return &Server{users: users, deleter: deleter, log: logging.OrGlobal(logger).Named("user.grpc")}
}

// GetMe returns the caller's own profile.
func (s *Server) GetMe(ctx context.Context, req *userv1.GetMeRequest) (*userv1.GetMeResponse, error) {
	if s.users == nil {
		return s.UnimplementedUserServiceServer.GetMe(ctx, req)
	}
	userID, ok := interceptors.GetUserID(ctx)
	if !ok || userID == "" {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}
	u, err := s.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &userv1.GetMeResponse{User: domainUserToProto(u)}, nil
}

// GetUser returns a user by ID.
func (s *Server) GetUser(ctx context.Context, req *userv1.GetUserRequest) (*userv1.GetUserResponse, error) {
	if s.users == nil {
		return s.UnimplementedUserServiceServer.GetUser(ctx, req)
	}
	userID := strings.TrimSpace(req.GetUserId())
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id required")
	}
	u, err := s.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &userv1.GetUserResponse{User: domainUserToProto(u)}, nil
}

// DeleteUser soft-deletes a user and revokes their sessions. Admins cannot delete themselves.
func (s *Server) DeleteUser(ctx context.Context, req *userv1.DeleteUserRequest) (*userv1.DeleteUserResponse, error) {
	if s.deleter == nil {
		return s.UnimplementedUserServiceServer.DeleteUser(ctx, req)
	}
	userID := strings.TrimSpace(req.GetUserId())
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id required")
	}
	actorID, _ := interceptors.GetUserID(ctx)
	if actorID == userID {
		return nil, status.Error(codes.FailedPrecondition, "cannot delete own account")
	}
	if err := s.deleter.DeleteUser(ctx, actorID, userID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return nil, status.Error(codes.NotFound, "user not found")
		}
		s.log.Error("delete user", zap.String("user_id", userID), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to delete user")
	}
	return &userv1.DeleteUserResponse{}, nil
}

func (s *Server) lookup(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.log.Error("look up user", zap.String("user_id", userID), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to look up user")
	}
	if u == nil {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	return u, nil
}

func domainUserToProto(u *domain.User) *userv1.User {
	if u == nil {
		return nil
	}
	return &userv1.User{
		Id:            u.ID,
		Email:         u.Email,
		Role:          string(u.Role),
		EmailVerified: u.EmailVerified(),
		CreatedAt:     timestamppb.New(u.CreatedAt),
		UpdatedAt:     timestamppb.New(u.UpdatedAt),
	}
}
