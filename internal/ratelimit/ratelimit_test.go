package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func mustAllow(t *testing.T, l Limiter, key string, want bool) {
	t.Helper()
	got, err := l.Allow(context.Background(), key)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if got != want {
		t.Fatalf("Allow(%q) = %v, want %v", key, got, want)
	}
}

func TestMemoryLimiterSlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(3, time.Hour)
	l.now = clock.now

	for i := 0; i < 3; i++ {
		mustAllow(t, l, "guest-a", true)
		clock.advance(10 * time.Minute)
	}
	mustAllow(t, l, "guest-a", false)
	mustAllow(t, l, "guest-b", true)

	// first hit was at 12:00, now 12:30; at 13:00:01 it leaves the window
	clock.advance(30*time.Minute + time.Second)
	mustAllow(t, l, "guest-a", true)
	mustAllow(t, l, "guest-a", false)
}

func TestMemoryLimiterCleanupDropsIdleKeys(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	l := NewMemoryLimiter(1, time.Minute)
	l.now = clock.now

	mustAllow(t, l, "a", true)
	mustAllow(t, l, "b", true)
	clock.advance(2 * time.Minute)
	l.Cleanup()

	if n := l.keys(); n != 0 {
		t.Fatalf("expected idle keys to be dropped, %d left", n)
	}
}

func newRedisLimiter(t *testing.T, limit int, window time.Duration) (*RedisLimiter, *fakeClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewRedisLimiter(client, "rl:test", limit, window)
	l.now = clock.now
	return l, clock
}

func TestRedisLimiterSlidingWindow(t *testing.T) {
	l, clock := newRedisLimiter(t, 2, time.Hour)

	mustAllow(t, l, "ip:1.2.3.4", true)
	clock.advance(time.Minute)
	mustAllow(t, l, "ip:1.2.3.4", true)
	mustAllow(t, l, "ip:1.2.3.4", false)
	mustAllow(t, l, "ip:5.6.7.8", true)

	clock.advance(time.Hour)
	mustAllow(t, l, "ip:1.2.3.4", true)
}

func TestRedisLimiterRejectedHitsDoNotCount(t *testing.T) {
	l, clock := newRedisLimiter(t, 1, time.Minute)

	mustAllow(t, l, "k", true)
	for i := 0; i < 5; i++ {
		clock.advance(time.Second)
		mustAllow(t, l, "k", false)
	}
	// only the accepted hit occupies the window
	clock.advance(56 * time.Second)
	mustAllow(t, l, "k", true)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, context.DeadlineExceeded
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(l Limiter) *gin.Engine {
		r := gin.New()
		r.POST("/jobs", Middleware(l, CookieOrIP("guest_id"), logger.Nop()), func(c *gin.Context) {
			c.Status(http.StatusCreated)
		})
		return r
	}

	t.Run("limits per guest cookie", func(t *testing.T) {
		r := newRouter(NewMemoryLimiter(2, time.Hour))
		send := func(cookie string) int {
			req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
			if cookie != "" {
				req.AddCookie(&http.Cookie{Name: "guest_id", Value: cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			return w.Code
		}

		if send("g1") != http.StatusCreated || send("g1") != http.StatusCreated {
			t.Fatal("expected first two requests to pass")
		}
		if code := send("g1"); code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", code)
		}
		if code := send("g2"); code != http.StatusCreated {
			t.Fatalf("expected a different guest to pass, got %d", code)
		}
	})

	t.Run("fails open on limiter error", func(t *testing.T) {
		r := newRouter(failingLimiter{})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/jobs", nil))
		if w.Code != http.StatusCreated {
			t.Fatalf("expected request to pass, got %d", w.Code)
		}
	})
}
