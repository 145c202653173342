package server

import (
	"context"
	"errors"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	auditv1 "authgate/backend/api/generated/audit/v1"
	authv1 "authgate/backend/api/generated/auth/v1"
	userv1 "authgate/backend/api/generated/user/v1"
	"authgate/backend/internal/audit"
	audithandler "authgate/backend/internal/audit/handler"
	healthhandler "authgate/backend/internal/health/handler"
	identityhandler "authgate/backend/internal/identity/handler"
	"authgate/backend/internal/logging"
	"authgate/backend/internal/security"
	"authgate/backend/internal/server/interceptors"
	"authgate/backend/internal/telemetry"
	userhandler "authgate/backend/internal/user/handler"
)

// AuthService is the auth surface served over gRPC and used by the auth interceptor.
type AuthService interface {
	identityhandler.AuthService
}

// Deps holds service dependencies for gRPC handlers and interceptors.
type Deps struct {
	// Auth serves AuthService and validates bearer tokens. If nil, auth RPCs return Unimplemented and protected RPCs are rejected.
	Auth AuthService
	// AuditRepo backs AuditService. If nil, ListAuditLogs returns Unimplemented.
	AuditRepo audithandler.Lister
	// AuditLogger records non-auth RPCs. If nil, the audit interceptor no-ops.
	AuditLogger audit.AuditLogger
	// Users backs GetMe and GetUser. If nil, UserService returns Unimplemented.
	Users userhandler.UserReader
	// UserDeleter backs DeleteUser. If nil, DeleteUser returns Unimplemented.
	UserDeleter userhandler.UserDeleter
	// Policy authorizes protected RPCs by role. If nil, every protected RPC is denied.
	Policy interceptors.Authorizer
	// HealthPingers are pinged by the health Check (e.g. "postgres", "redis").
	HealthPingers map[string]healthhandler.Pinger
	// HealthPolicyChecker is consulted by the health Check. If nil, the policy check is skipped.
	HealthPolicyChecker healthhandler.PolicyChecker
	// Telemetry receives one grpc_request event per RPC. If nil, no events are emitted.
	Telemetry telemetry.EventEmitter
	Logger    *zap.Logger
}

const (
	healthCheckMethod = "/grpc.health.v1.Health/Check"
	healthWatchMethod = "/grpc.health.v1.Health/Watch"
	healthListMethod  = "/grpc.health.v1.Health/List"
)

// PublicMethods are callable without a bearer token and skip the role policy.
var PublicMethods = map[string]bool{
	authv1.AuthService_Register_FullMethodName:       true,
	authv1.AuthService_Signin_FullMethodName:         true,
	authv1.AuthService_Refresh_FullMethodName:        true,
	authv1.AuthService_ValidateAccess_FullMethodName: true,
	authv1.AuthService_VerifyEmail_FullMethodName:    true,
	healthCheckMethod: true,
	healthWatchMethod: true,
	healthListMethod:  true,
}

// auditSkipMethods are not recorded by the audit interceptor: the auth service
// writes its own security events and health checks are noise.
var auditSkipMethods = map[string]bool{
	authv1.AuthService_Register_FullMethodName:       true,
	authv1.AuthService_Signin_FullMethodName:         true,
	authv1.AuthService_Refresh_FullMethodName:        true,
	authv1.AuthService_Logout_FullMethodName:         true,
	authv1.AuthService_ValidateAccess_FullMethodName: true,
	authv1.AuthService_VerifyEmail_FullMethodName:    true,
	healthCheckMethod: true,
	healthWatchMethod: true,
	healthListMethod:  true,
}

var telemetrySkipMethods = map[string]bool{
	healthCheckMethod: true,
	healthWatchMethod: true,
	healthListMethod:  true,
}

// NewServer returns a gRPC server with tracing, the interceptor chain
// (telemetry, auth, policy, audit) and every service registered.
func NewServer(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	logger := logging.OrGlobal(deps.Logger)
	var validator interceptors.AccessValidator = rejectAll{}
	if deps.Auth != nil {
		validator = deps.Auth
	}
	var authz interceptors.Authorizer = rejectAll{}
	if deps.Policy != nil {
		authz = deps.Policy
	}
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.TelemetryUnary(deps.Telemetry, telemetrySkipMethods, logger),
			interceptors.AuthUnary(validator, PublicMethods),
			interceptors.PolicyUnary(authz, PublicMethods, logger),
			interceptors.AuditUnary(deps.AuditLogger, auditSkipMethods),
		),
	}
	s := grpc.NewServer(append(base, opts...)...)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers AuthService, UserService, AuditService and grpc.health.v1.Health on s.
//
// Service → handler mapping:
//   - AuthService  → internal/identity/handler
//   - UserService  → internal/user/handler
//   - AuditService → internal/audit/handler
//   - Health       → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) *healthhandler.Server {
	authv1.RegisterAuthServiceServer(s, identityhandler.NewAuthServer(deps.Auth, deps.Logger))
	userv1.RegisterUserServiceServer(s, userhandler.NewServer(deps.Users, deps.UserDeleter, deps.Logger))
	auditv1.RegisterAuditServiceServer(s, audithandler.NewServer(deps.AuditRepo, deps.Logger))

	hs := healthhandler.NewServer(deps.HealthPingers, deps.HealthPolicyChecker, deps.Logger)
	hs.SetServingStatus(authv1.AuthService_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(userv1.UserService_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(auditv1.AuditService_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}

var errNotConfigured = errors.New("not configured")

// rejectAll stands in for a missing validator or policy; it denies every call.
type rejectAll struct{}

func (rejectAll) ValidateAccess(context.Context, string) (*security.AccessClaims, error) {
	return nil, errNotConfigured
}

func (rejectAll) Allow(context.Context, string, string) (bool, error) {
	return false, nil
}
