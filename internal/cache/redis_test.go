package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestRedisStore_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration test")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	if err != nil {
		t.Skipf("Redis connection failed (expected in test environment): %v", err)
	}
	defer client.Close()
	store := NewRedisStore(client)

	key := SessionBlacklistKey("integration-test")
	if err := store.Set(ctx, key, "true", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := store.Get(ctx, key)
	if err != nil || !ok || v != "true" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
	if ttl := client.TTL(ctx, key).Val(); ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want (0, 1m]", ttl)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, key); ok {
		t.Error("key should be gone after Delete")
	}
	if err := store.Set(ctx, key, "true", 0); err != ErrInvalidTTL {
		t.Errorf("Set ttl=0: want ErrInvalidTTL, got %v", err)
	}
}
