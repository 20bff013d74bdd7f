package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestHandler(t *testing.T, max int) Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Handler{
		Limiter: Limiter{Client: client, Prefix: "rl:test:"},
		Config: Config{
			Key:    func(*http.Request) string { return "phone:+989123456789" },
			Window: time.Minute,
			Max:    max,
		},
	}
}

func TestMiddlewareBlocksOverBudget(t *testing.T) {
	handler := newTestHandler(t, 1)
	wrapped := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/otp/request", nil)

	first := httptest.NewRecorder()
	wrapped.ServeHTTP(first, req.Clone(req.Context()))
	if first.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	wrapped.ServeHTTP(second, req.Clone(req.Context()))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be throttled, got %d", second.Code)
	}
	if second.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("unexpected limit header: %q", second.Header().Get("X-RateLimit-Limit"))
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After on throttled response")
	}
	if !strings.Contains(second.Body.String(), "RATE_LIMITED") {
		t.Fatalf("expected envelope error code, got %s", second.Body.String())
	}
}

func TestMiddlewareFailsOpenOnRedisError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = client.Close() }()

	var reported error
	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "rl:test:"},
		Config: Config{
			Key:    func(*http.Request) string { return "err" },
			Window: time.Second,
			Max:    1,
		},
		OnError: func(err error) { reported = err },
	}

	wrapped := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/otp/request", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("limiter failure must not block requests, got %d", rr.Code)
	}
	if reported == nil {
		t.Fatal("expected the redis error to be surfaced via OnError")
	}
}
