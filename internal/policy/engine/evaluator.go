package engine

import "context"

// Evaluator decides whether a role may invoke a gRPC method.
type Evaluator interface {
	// Allow reports whether role may call fullMethod (e.g. "/authgate.audit.v1.AuditService/ListAuditLogs").
	Allow(ctx context.Context, fullMethod, role string) (bool, error)
	// HealthCheck verifies the engine can evaluate its policy.
	HealthCheck(ctx context.Context) error
}
