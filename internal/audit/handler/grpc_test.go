package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	auditv1 "authgate/backend/api/generated/audit/v1"
	auditdomain "authgate/backend/internal/audit/domain"
	auditrepo "authgate/backend/internal/audit/repository"
)

type failingLister struct{}

func (failingLister) ListByUser(context.Context, string, int32) ([]*auditdomain.AuditLog, error) {
	return nil, errors.New("db down")
}

type limitRecorder struct{ got int32 }

func (l *limitRecorder) ListByUser(_ context.Context, _ string, limit int32) ([]*auditdomain.AuditLog, error) {
	l.got = limit
	return nil, nil
}

func TestListAuditLogs_NilRepo(t *testing.T) {
	_, err := NewServer(nil, nil).ListAuditLogs(context.Background(), &auditv1.ListAuditLogsRequest{UserId: "u"})
	if status.Code(err) != codes.Unimplemented {
		t.Errorf("code = %v, want Unimplemented", status.Code(err))
	}
}

func TestListAuditLogs_NewestFirst(t *testing.T) {
	repo := auditrepo.NewMemoryRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, action := range []string{auditdomain.ActionRegister, auditdomain.ActionSigninSuccess, auditdomain.ActionLogout} {
		_ = repo.Create(context.Background(), &auditdomain.AuditLog{
			ID: action, UserID: "user-1", Action: action, IP: "127.0.0.1", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	_ = repo.Create(context.Background(), &auditdomain.AuditLog{ID: "other", UserID: "user-2", Action: "register", CreatedAt: base})

	resp, err := NewServer(repo, zap.NewNop()).ListAuditLogs(context.Background(), &auditv1.ListAuditLogsRequest{UserId: "user-1", Limit: 2})
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if len(resp.Logs) != 2 {
		t.Fatalf("len = %d, want 2", len(resp.Logs))
	}
	if resp.Logs[0].Action != auditdomain.ActionLogout || resp.Logs[1].Action != auditdomain.ActionSigninSuccess {
		t.Errorf("order = %q, %q", resp.Logs[0].Action, resp.Logs[1].Action)
	}
	if resp.Logs[0].CreatedAt != base.Add(2*time.Minute).UnixMilli() {
		t.Errorf("created_at = %d", resp.Logs[0].CreatedAt)
	}
}

func TestListAuditLogs_Validation(t *testing.T) {
	_, err := NewServer(auditrepo.NewMemoryRepository(), zap.NewNop()).ListAuditLogs(context.Background(), &auditv1.ListAuditLogsRequest{UserId: "  "})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestListAuditLogs_RepoError(t *testing.T) {
	_, err := NewServer(failingLister{}, zap.NewNop()).ListAuditLogs(context.Background(), &auditv1.ListAuditLogsRequest{UserId: "u"})
	if status.Code(err) != codes.Internal {
		t.Errorf("code = %v, want Internal", status.Code(err))
	}
}

func TestListAuditLogs_LimitClamp(t *testing.T) {
	tests := []struct{ in, want int32 }{{0, 50}, {-3, 50}, {10, 10}, {501, 500}}
	for _, tt := range tests {
		rec := &limitRecorder{}
		if _, err := NewServer(rec, zap.NewNop()).ListAuditLogs(context.Background(), &auditv1.ListAuditLogsRequest{UserId: "u", Limit: tt.in}); err != nil {
			t.Fatalf("ListAuditLogs: %v", err)
		}
		if rec.got != tt.want {
			t.Errorf("limit %d -> %d, want %d", tt.in, rec.got, tt.want)
		}
	}
}
