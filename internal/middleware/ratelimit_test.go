package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gippro/learnsync/internal/model"
)

// fakeClock is advanced by hand so refills are deterministic
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// chatLimiter allows 6 questions a minute, 2 back to back
func chatLimiter(t *testing.T, clock *fakeClock) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimitConfig{Rate: 6, Window: time.Minute, Burst: 2, Idle: time.Hour, Now: clock.Now})
	t.Cleanup(rl.Stop)
	return rl
}

func TestAllow_BurstThenWait(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	rl := chatLimiter(t, clock)

	for i := 0; i < 2; i++ {
		if ok, _, _ := rl.Allow("uid:u1"); !ok {
			t.Fatalf("question %d should be allowed", i+1)
		}
	}

	ok, remaining, retryAfter := rl.Allow("uid:u1")
	if ok {
		t.Fatal("third question back to back should be denied")
	}
	if remaining != 0 {
		t.Errorf("expected 0 remaining, got %d", remaining)
	}
	// 6 per minute refills one token every 10s
	if retryAfter <= 0 || retryAfter > 10*time.Second {
		t.Errorf("expected retry within 10s, got %v", retryAfter)
	}

	clock.Advance(10 * time.Second)
	if ok, _, _ := rl.Allow("uid:u1"); !ok {
		t.Error("a token should have refilled after 10s")
	}
}

func TestAllow_DeniedRequestsDoNotConsume(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	rl := chatLimiter(t, clock)

	rl.Allow("uid:u1")
	rl.Allow("uid:u1")
	for i := 0; i < 5; i++ {
		rl.Allow("uid:u1")
	}

	clock.Advance(10 * time.Second)
	if ok, _, _ := rl.Allow("uid:u1"); !ok {
		t.Error("denied attempts must not push the refill further out")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	t.Parallel()
	rl := chatLimiter(t, newFakeClock())

	rl.Allow("uid:u1")
	rl.Allow("uid:u1")

	if ok, remaining, _ := rl.Allow("uid:u2"); !ok || remaining != 1 {
		t.Errorf("u2 should start with a full bucket, got ok=%v remaining=%d", ok, remaining)
	}
}

func TestSweep_DropsIdleBuckets(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	rl := chatLimiter(t, clock)

	rl.Allow("uid:old")
	clock.Advance(50 * time.Minute)
	rl.Allow("uid:fresh")
	clock.Advance(20 * time.Minute)

	rl.sweep()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.buckets["uid:old"]; ok {
		t.Error("idle bucket should be dropped")
	}
	if _, ok := rl.buckets["uid:fresh"]; !ok {
		t.Error("recent bucket should be kept")
	}
}

func TestClientKey(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	if got := clientKey(req); got != "addr:10.0.0.7" {
		t.Errorf("expected host key without port, got %q", got)
	}

	req = req.WithContext(context.WithValue(req.Context(), SessionKey, &model.Identity{UID: "u1"}))
	if got := clientKey(req); got != "uid:u1" {
		t.Errorf("expected session key, got %q", got)
	}
}

func TestRateLimit_RejectsWithProblemDetails(t *testing.T) {
	t.Parallel()
	rl := chatLimiter(t, newFakeClock())
	h := RateLimit(rl)(&captureHandler{})

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
		req.RemoteAddr = "10.0.0.7:5000"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", last.Code)
	}
	if got := last.Header().Get("Retry-After"); got != "10" {
		t.Errorf("expected Retry-After 10, got %q", got)
	}
	if got := last.Header().Get("X-RateLimit-Limit"); got != "6" {
		t.Errorf("expected limit header 6, got %q", got)
	}
	if ct := last.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem content type, got %q", ct)
	}
}
