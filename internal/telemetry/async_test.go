package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"authgate/backend/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.Event
	emitErr error
	ctxErr  error
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErr = ctx.Err()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Event(nil), m.events...)
}

// waitFor polls until n events have been recorded or the deadline passes.
func waitFor(t *testing.T, m *mockEventEmitter, n int) []*domain.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev := m.getEvents(); len(ev) >= n {
			return ev
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d", n, len(m.getEvents()))
	return nil
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	// Should not panic
	EmitAsync(nil, &domain.Event{EventType: "test"}, nil)
}

func TestEmitAsync_NilEvent(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitAsync(emitter, nil, nil)
	time.Sleep(10 * time.Millisecond)
	if events := emitter.getEvents(); len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitAsync(emitter, &domain.Event{UserID: "user-1", EventType: "test_event", Source: "test"}, nil)

	events := waitFor(t, emitter, 1)
	if events[0].UserID != "user-1" {
		t.Errorf("event user_id = %q, want %q", events[0].UserID, "user-1")
	}
	if events[0].EventType != "test_event" {
		t.Errorf("event type = %q, want %q", events[0].EventType, "test_event")
	}
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	if emitter.ctxErr != nil {
		t.Errorf("emit context already done: %v", emitter.ctxErr)
	}
}

func TestEmitAsync_ErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	emitter := &mockEventEmitter{emitErr: errors.New("broker down")}
	EmitAsync(emitter, &domain.Event{EventType: "test"}, zap.New(core))

	waitFor(t, emitter, 1)
	deadline := time.Now().Add(2 * time.Second)
	for logs.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if logs.FilterMessage("telemetry: async emit failed").Len() != 1 {
		t.Errorf("expected one warning, got %v", logs.All())
	}
}

func TestEmitAsync_ConcurrentAccess(t *testing.T) {
	emitter := &mockEventEmitter{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(emitter, &domain.Event{EventType: "test"}, nil)
		}()
	}
	wg.Wait()
	waitFor(t, emitter, 10)
}

func TestFanout_CallsAllAndJoinsErrors(t *testing.T) {
	ok := &mockEventEmitter{}
	bad := &mockEventEmitter{emitErr: errors.New("boom")}
	f := Fanout(ok, nil, bad)
	err := f.Emit(context.Background(), &domain.Event{EventType: "x"})
	if err == nil || err.Error() != "boom" {
		t.Errorf("Emit err = %v, want boom", err)
	}
	if len(ok.getEvents()) != 1 || len(bad.getEvents()) != 1 {
		t.Error("every emitter should receive the event")
	}
	if err := Fanout().Emit(context.Background(), &domain.Event{}); err != nil {
		t.Errorf("empty fanout: %v", err)
	}
}
