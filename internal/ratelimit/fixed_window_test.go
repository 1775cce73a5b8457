package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, opts Options) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := NewFixedWindowLimiter(client, opts)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return limiter, mr
}

func TestFixedWindowLimiterPerBrand(t *testing.T) {
	limiter, _ := newLimiter(t, Options{Limit: 2, Window: time.Minute, Prefix: "test:ratelimit"})
	ctx := context.Background()

	first := limiter.Allow(ctx, "brand-1")
	if !first.Allowed || first.Remaining != 1 {
		t.Fatalf("first request: %+v", first)
	}
	if !limiter.Allow(ctx, "brand-1").Allowed {
		t.Fatalf("second request should pass")
	}
	third := limiter.Allow(ctx, "brand-1")
	if third.Allowed {
		t.Fatalf("third request should be blocked")
	}
	if third.RetryAfter <= 0 || third.RetryAfter > time.Minute {
		t.Fatalf("unexpected retry after: %s", third.RetryAfter)
	}
	if !limiter.Allow(ctx, "brand-2").Allowed {
		t.Fatalf("other brand should have its own window")
	}
}

func TestFixedWindowLimiterFailClosed(t *testing.T) {
	limiter, mr := newLimiter(t, Options{Limit: 1, Window: time.Second})
	mr.Close()
	if limiter.Allow(context.Background(), "brand-1").Allowed {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterFailOpen(t *testing.T) {
	limiter, mr := newLimiter(t, Options{Limit: 1, Window: time.Second, FailOpen: true})
	mr.Close()
	if !limiter.Allow(context.Background(), "brand-1").Allowed {
		t.Fatalf("limiter should fail open when configured")
	}
}

func TestNewFixedWindowLimiterValidates(t *testing.T) {
	if _, err := NewFixedWindowLimiter(nil, Options{Limit: 1, Window: time.Second}); err == nil {
		t.Fatalf("expected error for nil client")
	}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	if _, err := NewFixedWindowLimiter(client, Options{Limit: 0, Window: time.Second}); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}
