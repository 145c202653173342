package handler

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) Ping(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func check(t *testing.T, srv *Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check must not return a gRPC error on dependency failure: %v", err)
	}
	return resp.GetStatus()
}

func TestCheck_NoDependencies(t *testing.T) {
	if got := check(t, NewServer(nil, nil, zap.NewNop()), ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
}

func TestCheck_Dependencies(t *testing.T) {
	tests := []struct {
		name    string
		pingers map[string]Pinger
		policy  PolicyChecker
		want    healthpb.HealthCheckResponse_ServingStatus
	}{
		{"all healthy", map[string]Pinger{"postgres": &mockPinger{}, "redis": &mockPinger{}}, &mockPolicyChecker{}, healthpb.HealthCheckResponse_SERVING},
		{"postgres down", map[string]Pinger{"postgres": &mockPinger{pingErr: errors.New("connection refused")}}, nil, healthpb.HealthCheckResponse_NOT_SERVING},
		{"redis down", map[string]Pinger{"postgres": &mockPinger{}, "redis": &mockPinger{pingErr: errors.New("i/o timeout")}}, nil, healthpb.HealthCheckResponse_NOT_SERVING},
		{"policy broken", nil, &mockPolicyChecker{healthErr: errors.New("rego compile failed")}, healthpb.HealthCheckResponse_NOT_SERVING},
		{"nil pinger skipped", map[string]Pinger{"redis": nil}, nil, healthpb.HealthCheckResponse_SERVING},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := check(t, NewServer(tt.pingers, tt.policy, zap.NewNop()), ""); got != tt.want {
				t.Errorf("status = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheck_NamedService(t *testing.T) {
	srv := NewServer(map[string]Pinger{"postgres": &mockPinger{pingErr: errors.New("down")}}, nil, zap.NewNop())
	srv.SetServingStatus("authgate.auth.v1.AuthService", healthpb.HealthCheckResponse_SERVING)
	if got := check(t, srv, "authgate.auth.v1.AuthService"); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
	if _, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "unknown"}); err == nil {
		t.Error("unknown service should return NotFound")
	}
}
