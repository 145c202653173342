package interceptors

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"authgate/backend/internal/logging"
)

// Authorizer decides whether a role may call a method.
type Authorizer interface {
	Allow(ctx context.Context, fullMethod, role string) (bool, error)
}

// PolicyUnary returns a unary server interceptor that enforces the role policy on protected RPCs.
// It must run after AuthUnary. Evaluation errors deny the call.
func PolicyUnary(authz Authorizer, publicMethods map[string]bool, logger *zap.Logger) grpc.UnaryServerInterceptor {
	logger = logging.OrGlobal(logger)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		role, _ := GetRole(ctx)
		allowed, err := authz.Allow(ctx, info.FullMethod, role)
		if err != nil {
			logger.Error("policy evaluation failed", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.PermissionDenied, "permission denied")
		}
		if !allowed {
			return nil, status.Error(codes.PermissionDenied, "permission denied")
		}
		return handler(ctx, req)
	}
}
