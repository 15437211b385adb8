package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"KikenQR/config"
	"KikenQR/pkg/errors"
	"KikenQR/pkg/logger"
	"KikenQR/pkg/response"
	"KikenQR/storage/redis"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
	KeyPrefix   string
}

// RateLimiter 基于 zset 的滑动窗口限流，按客户端 IP 计数
type RateLimiter struct {
	config RateLimitConfig
	client redislib.Cmdable
}

func NewRateLimiter(cfg RateLimitConfig, client redislib.Cmdable) *RateLimiter {
	return &RateLimiter{config: cfg, client: client}
}

// Allow 返回是否放行以及窗口内的请求数（含本次）
func (rl *RateLimiter) Allow(ctx context.Context, clientIP string) (bool, int, error) {
	key := redis.Key(rl.config.KeyPrefix, clientIP)
	now := time.Now()
	windowStart := now.Add(-rl.config.Window)

	pipe := rl.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, key, redislib.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rl.config.Window+10*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to execute rate limit pipeline: %w", err)
	}

	count := int(card.Val())
	return count <= rl.config.MaxRequests, count, nil
}

// Limiter 按客户端计数，RateLimiter 是 redis 实现
type Limiter interface {
	Allow(ctx context.Context, clientIP string) (bool, int, error)
}

// RateLimitMiddleware redis 不可用时放行，只记日志
func RateLimitMiddleware(cfg RateLimitConfig) app.HandlerFunc {
	// redis 客户端在请求到来时才取，路由注册时可能尚未初始化
	return RateLimitMiddlewareWith(cfg, func() Limiter {
		return NewRateLimiter(cfg, redis.Client())
	})
}

func RateLimitMiddlewareWith(cfg RateLimitConfig, newLimiter func() Limiter) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		allowed, count, err := newLimiter().Allow(ctx, c.ClientIP())
		if err != nil {
			logger.L().Error("Failed to check rate limit", zap.Error(err))
			c.Next(ctx)
			return
		}

		remaining := cfg.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Response.Header.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(cfg.Window).Unix(), 10))

		if !allowed {
			logger.L().Warn("Rate limit exceeded",
				zap.String("client_ip", c.ClientIP()),
				zap.String("path", string(c.Path())),
			)
			response.Error(ctx, c, errors.TooManyRequests)
			c.Abort()
			return
		}

		c.Next(ctx)
	}
}

// ClockInRateLimitMiddleware 公开的打卡接口，每 IP 每分钟 RATE_LIMIT_RPM 次
func ClockInRateLimitMiddleware() app.HandlerFunc {
	if !config.Cfg.RateLimitEnabled {
		return func(ctx context.Context, c *app.RequestContext) {
			c.Next(ctx)
		}
	}

	return RateLimitMiddleware(RateLimitConfig{
		Window:      time.Minute,
		MaxRequests: config.Cfg.RateLimitRPM,
		KeyPrefix:   "ratelimit:clockin",
	})
}
