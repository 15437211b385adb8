package middleware

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	redislib "github.com/redis/go-redis/v9"
)

// countingLimiter 进程内计数，不设窗口
type countingLimiter struct {
	mu     sync.Mutex
	max    int
	counts map[string]int
}

func (l *countingLimiter) Allow(ctx context.Context, clientIP string) (bool, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[clientIP]++
	n := l.counts[clientIP]
	return n <= l.max, n, nil
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	cfg := RateLimitConfig{Window: time.Minute, MaxRequests: 2, KeyPrefix: "ratelimit:test"}
	limiter := &countingLimiter{max: cfg.MaxRequests, counts: map[string]int{}}

	r := newEngine()
	r.Use(RateLimitMiddlewareWith(cfg, func() Limiter { return limiter }))
	calls := 0
	r.POST("/v1/clock-in/session/step1", func(ctx context.Context, c *app.RequestContext) {
		calls++
		c.SetStatusCode(consts.StatusOK)
	})

	for i := 1; i <= 2; i++ {
		resp := ut.PerformRequest(r, consts.MethodPost, "/v1/clock-in/session/step1", nil).Result()
		if resp.StatusCode() != consts.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, resp.StatusCode())
		}
	}

	resp := ut.PerformRequest(r, consts.MethodPost, "/v1/clock-in/session/step1", nil).Result()
	if resp.StatusCode() != consts.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode())
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2", calls)
	}
	if got := string(resp.Header.Peek("X-RateLimit-Remaining")); got != "0" {
		t.Fatalf("X-RateLimit-Remaining = %q", got)
	}
	if got := string(resp.Header.Peek("X-RateLimit-Limit")); got != "2" {
		t.Fatalf("X-RateLimit-Limit = %q", got)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "TOO_MANY_REQUESTS" {
		t.Fatalf("code = %q", body.Error.Code)
	}
}

func TestRateLimitFailsOpenWhenRedisUnreachable(t *testing.T) {
	client := redislib.NewClient(&redislib.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	cfg := RateLimitConfig{Window: time.Minute, MaxRequests: 1, KeyPrefix: "ratelimit:test"}
	limiter := NewRateLimiter(cfg, client)
	if _, _, err := limiter.Allow(context.Background(), "10.0.0.1"); err == nil {
		t.Fatal("expected pipeline error from unreachable redis")
	}

	r := newEngine()
	r.Use(RateLimitMiddlewareWith(cfg, func() Limiter { return limiter }))
	calls := 0
	r.GET("/v1/clock-in/session", func(ctx context.Context, c *app.RequestContext) {
		calls++
		c.SetStatusCode(consts.StatusOK)
	})

	for i := 0; i < 3; i++ {
		resp := ut.PerformRequest(r, consts.MethodGet, "/v1/clock-in/session", nil).Result()
		if resp.StatusCode() != consts.StatusOK {
			t.Fatalf("request %d: status = %d, want 200 when redis is down", i, resp.StatusCode())
		}
		if len(resp.Header.Peek("X-RateLimit-Limit")) != 0 {
			t.Fatal("limit headers must not be set when the check failed")
		}
	}
	if calls != 3 {
		t.Fatalf("handler ran %d times, want 3", calls)
	}
}
