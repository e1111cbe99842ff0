package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryFixedWindow(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	limiter := NewMemory()
	limiter.Now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		decision, err := limiter.Allow(ctx, "client", 2, time.Minute)
		if err != nil || !decision.Allowed {
			t.Fatalf("request %d should pass: %+v err=%v", i, decision, err)
		}
	}
	decision, _ := limiter.Allow(ctx, "client", 2, time.Minute)
	if decision.Allowed || decision.Remaining != 0 {
		t.Fatalf("third request should be limited: %+v", decision)
	}
	if !decision.ResetAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected reset %s", decision.ResetAt)
	}

	now = now.Add(time.Minute + time.Second)
	decision, _ = limiter.Allow(ctx, "client", 2, time.Minute)
	if !decision.Allowed || decision.Remaining != 1 {
		t.Fatalf("new window should pass: %+v", decision)
	}
}

func TestMemoryCapacity(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	limiter := NewMemory()
	limiter.Now = func() time.Time { return now }
	limiter.MaxKeys = 1
	ctx := context.Background()

	if _, err := limiter.Allow(ctx, "a", 1, time.Minute); err != nil {
		t.Fatalf("first key: %v", err)
	}
	if _, err := limiter.Allow(ctx, "b", 1, time.Minute); err == nil {
		t.Fatalf("expected capacity error")
	}
	now = now.Add(2 * time.Minute)
	if _, err := limiter.Allow(ctx, "b", 1, time.Minute); err != nil {
		t.Fatalf("expired window should be evicted: %v", err)
	}
}

func TestDisabledLimit(t *testing.T) {
	decision, err := NewMemory().Allow(context.Background(), "x", 0, time.Minute)
	if err != nil || !decision.Allowed {
		t.Fatalf("zero limit should allow: %+v err=%v", decision, err)
	}
}
