package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestLimiterKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	c.Request = req

	if key := limiterKey(c); key != "ip:203.0.113.9" {
		t.Fatalf("ip key=%q", key)
	}
	c.Set(ctxKeyUserID, "u123")
	if key := limiterKey(c); key != "user:u123" {
		t.Fatalf("user key=%q", key)
	}
}

func TestRateLimiter_BurstCoercionAndReuse(t *testing.T) {
	rl := NewRateLimiter(2, 0)
	if rl.burst != 1 {
		t.Fatalf("burst=%d want 1", rl.burst)
	}
	if rl.limiter("k1") != rl.limiter("k1") {
		t.Fatalf("expected bucket reuse")
	}
	if rl.Len() != 1 {
		t.Fatalf("len=%d", rl.Len())
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.limiter("old")

	now = now.Add(rl.ttl)
	rl.lookups = sweepEvery - 1
	rl.limiter("new")
	if _, ok := rl.buckets["old"]; ok {
		t.Fatalf("idle bucket not swept")
	}
	if rl.Len() != 1 || rl.lookups != 0 {
		t.Fatalf("len=%d lookups=%d", rl.Len(), rl.lookups)
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.001, 2)
	r := gin.New()
	r.Use(RequestID(), Identity(), rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(user string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(HeaderUserID, user)
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := call("alice"); w.Code != http.StatusNoContent {
			t.Fatalf("request %d: status=%d", i, w.Code)
		}
	}
	w := call("alice")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d want 429", w.Code)
	}
	if ra := w.Header().Get("Retry-After"); ra == "" || ra == "0" {
		t.Fatalf("Retry-After=%q", ra)
	}
	if !strings.Contains(w.Body.String(), "too_many_requests") {
		t.Fatalf("body=%s", w.Body.String())
	}

	// Buckets are per user.
	if w := call("bob"); w.Code != http.StatusNoContent {
		t.Fatalf("bob status=%d", w.Code)
	}
}

func TestRateLimiter_ReplayBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.001, 1)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Replay") != "" {
			c.Set(ctxKeyIdemReplay, "m-1")
		}
		c.Next()
	}, rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(replay bool) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if replay {
			req.Header.Set("X-Replay", "1")
		}
		r.ServeHTTP(w, req)
		return w.Code
	}
	if do(false) != http.StatusOK {
		t.Fatalf("first request should pass")
	}
	if do(false) != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited")
	}
	if do(true) != http.StatusOK {
		t.Fatalf("replay should bypass the limiter")
	}
}
