package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"authgate/backend/internal/logging"
)

// Pinger reports whether a backing store (Postgres, Redis) is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker verifies the policy engine can evaluate.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server implements grpc.health.v1.Health. Check runs the readiness checks for the
// overall service ("") and falls back to the registered statuses otherwise.
type Server struct {
	*health.Server
	pingers map[string]Pinger
	policy  PolicyChecker
	log     *zap.Logger
}

// NewServer returns a health server. pingers is keyed by dependency name (e.g. "postgres", "redis");
// nil entries and a nil policy checker are skipped.
func NewServer(pingers map[string]Pinger, policy PolicyChecker, logger *zap.Logger) *Server {
	return &Server{
		Server:  health.NewServer(),
		pingers: pingers,
		policy:  policy,
		log:     logging.OrGlobal(logger).Named("health"),
	}
}

// Check returns NOT_SERVING when any dependency check fails. Check failures are not RPC errors.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if req.GetService() != "" {
		return s.Server.Check(ctx, req)
	}
	for name, p := range s.pingers {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			s.log.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			return notServing(), nil
		}
	}
	if s.policy != nil {
		if err := s.policy.HealthCheck(ctx); err != nil {
			s.log.Warn("health check failed", zap.String("dependency", "policy"), zap.Error(err))
			return notServing(), nil
		}
	}
	return s.Server.Check(ctx, req)
}

func notServing() *healthpb.HealthCheckResponse {
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}
}
