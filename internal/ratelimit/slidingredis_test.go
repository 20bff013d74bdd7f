package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLimiterSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := Limiter{Client: client, Prefix: "rl:"}

	ctx := context.Background()
	window := 2 * time.Second
	const max = 2

	for i := 0; i < max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "otp:+989123456789", window, max)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should fit in the budget", i+1)
		}
		if remaining != max-(i+1) {
			t.Fatalf("unexpected remaining after request %d: %d", i+1, remaining)
		}
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "otp:+989123456789", window, max)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed || remaining != 0 {
		t.Fatalf("budget exhausted, expected rejection with 0 remaining, got allowed=%v remaining=%d", allowed, remaining)
	}

	// old events fall out of the window
	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, "otp:+989123456789", window, max)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !allowed {
		t.Fatal("expected a fresh window after expiry")
	}
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	allowed, _, _, err := Limiter{}.Allow(context.Background(), "any", time.Second, 5)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !allowed {
		t.Fatal("nil client must fail open")
	}
}
