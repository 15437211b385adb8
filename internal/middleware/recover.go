package middleware

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"KikenQR/config"
	"KikenQR/pkg/errors"
	"KikenQR/pkg/logger"
	"KikenQR/pkg/response"
)

// RecoverConfig recover 中间件配置
type RecoverConfig struct {
	EnableStackTrace bool
	// 生产环境不返回 panic 详情
	IsProduction bool
	// 请求体小于该值时写入日志
	MaxLoggedBody int
}

func NewRecoverConfig() RecoverConfig {
	return RecoverConfig{
		EnableStackTrace: true,
		IsProduction:     config.Cfg.IsProduction(),
		MaxLoggedBody:    1024,
	}
}

func RecoverMiddleware() app.HandlerFunc {
	return RecoverMiddlewareWithConfig(NewRecoverConfig())
}

func RecoverMiddlewareWithConfig(cfg RecoverConfig) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				handlePanic(ctx, c, err, cfg)
			}
		}()

		c.Next(ctx)
	}
}

func handlePanic(ctx context.Context, c *app.RequestContext, err interface{}, cfg RecoverConfig) {
	var stack string
	if cfg.EnableStackTrace {
		stack = callerStack(4)
	}

	logPanic(ctx, c, err, stack, cfg)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.RecordError(fmt.Errorf("panic: %v", err))
		span.SetStatus(codes.Error, "panic recovered")
	}

	errDef := errors.Definition{Code: "INTERNAL_SERVER_ERROR", Message: "Internal server error"}
	if cfg.IsProduction {
		response.Error(ctx, c, errDef)
	} else {
		details := map[string]interface{}{
			"panic":     fmt.Sprintf("%v", err),
			"timestamp": time.Now().Format(time.RFC3339),
		}
		if stack != "" {
			details["stack"] = stack
		}
		response.ErrorWithDetails(ctx, c, errDef, details)
	}
	c.Abort()
}

// callerStack 当前 goroutine 的调用栈，跳过 runtime 帧
func callerStack(skip int) string {
	var b strings.Builder
	for i := skip; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "/runtime/") {
			continue
		}
		name := "?"
		if fn := runtime.FuncForPC(pc); fn != nil {
			name = fn.Name()
		}
		fmt.Fprintf(&b, "%s:%d %s\n", file, line, name)
	}
	return b.String()
}

func logPanic(ctx context.Context, c *app.RequestContext, err interface{}, stack string, cfg RecoverConfig) {
	fields := []zap.Field{
		zap.String("panic", fmt.Sprintf("%v", err)),
		zap.String("path", string(c.Path())),
		zap.String("method", string(c.Method())),
		zap.String("client_ip", c.ClientIP()),
		zap.String("user_agent", string(c.UserAgent())),
	}

	requestID := string(c.GetHeader("X-Request-ID"))
	if requestID == "" {
		requestID = string(c.GetHeader("X-Trace-ID"))
	}
	fields = append(fields, zap.String("request_id", requestID))

	if sid, ok := GetSessionID(ctx, c); ok {
		fields = append(fields, logger.SessionID(sid))
	}

	// 请求体可能包含打卡人信息，仅开发环境记录
	if !cfg.IsProduction {
		body := c.Request.Body()
		if len(body) > 0 && len(body) < cfg.MaxLoggedBody && strings.Contains(string(c.ContentType()), "json") {
			fields = append(fields, zap.ByteString("body", body))
		}
	}

	if stack != "" {
		fields = append(fields, zap.String("stack", stack))
	}

	logger.L().Error("[PANIC RECOVERED]", fields...)
}
