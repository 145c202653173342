package handler

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	auditv1 "authgate/backend/api/generated/audit/v1"
	"authgate/backend/internal/audit/domain"
	"authgate/backend/internal/logging"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Lister reads a user's audit trail, newest first.
type Lister interface {
	ListByUser(ctx context.Context, userID string, limit int32) ([]*domain.AuditLog, error)
}

// Server implements AuditService for audit logs. Access is restricted to ADMIN by the RPC policy.
type Server struct {
	auditv1.UnimplementedAuditServiceServer
	repo Lister
	log  *zap.Logger
}

// NewServer returns a new Audit gRPC server. If repo is nil, ListAuditLogs returns Unimplemented.
func NewServer(repo Lister, logger *zap.Logger) *Server {
	return &Server{repo: repo, log: logging.OrGlobal(logger).Named("audit.grpc")}
}

// ListAuditLogs returns the newest audit entries for the requested user.
func (s *Server) ListAuditLogs(ctx context.Context, req *auditv1.ListAuditLogsRequest) (*auditv1.ListAuditLogsResponse, error) {
	if s.repo == nil {
		return s.UnimplementedAuditServiceServer.ListAuditLogs(ctx, req)
	}
	userID := strings.TrimSpace(req.GetUserId())
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	logs, err := s.repo.ListByUser(ctx, userID, clampLimit(req.GetLimit()))
	if err != nil {
		s.log.Error("list audit logs", zap.String("user_id", userID), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to list audit logs")
	}
	out := make([]*auditv1.AuditLog, 0, len(logs))
	for _, l := range logs {
		out = append(out, &auditv1.AuditLog{
			Id:        l.ID,
			UserId:    l.UserID,
			SessionId: l.SessionID,
			Action:    l.Action,
			Ip:        l.IP,
			Metadata:  l.Metadata,
			CreatedAt: l.CreatedAt.UnixMilli(),
		})
	}
	return &auditv1.ListAuditLogsResponse{Logs: out}, nil
}

func clampLimit(n int32) int32 {
	switch {
	case n <= 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	}
	return n
}
