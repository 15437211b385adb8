package middleware

import (
	"context"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"

	"KikenQR/pkg/errors"
	"KikenQR/pkg/response"
	"KikenQR/pkg/token"
)

const (
	IdentityKey = token.IdentityKey
)

var (
	authMiddleware *jwt.HertzJWTMiddleware
)

// initAuthMiddleware 复用 token 包的签名配置，只校验不签发
func initAuthMiddleware() error {
	sharedGenerator := token.GetGenerator()
	if sharedGenerator == nil {
		return fmt.Errorf("token generator not initialized, call token.Init() first")
	}

	mw, err := jwt.New(&jwt.HertzJWTMiddleware{
		Realm:       "KikenQR clock-in",
		Key:         sharedGenerator.Key,
		Timeout:     sharedGenerator.Timeout,
		MaxRefresh:  sharedGenerator.MaxRefresh,
		IdentityKey: sharedGenerator.IdentityKey,
		TimeFunc:    sharedGenerator.TimeFunc,

		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			sid, ok := claims[IdentityKey].(string)
			if !ok || sid == "" {
				return nil
			}
			return sid
		},

		Authorizator: func(data interface{}, ctx context.Context, c *app.RequestContext) bool {
			sid, ok := data.(string)
			return ok && sid != ""
		},

		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			response.ErrorWithDetails(ctx, c, errors.Unauthorized, map[string]interface{}{
				"reason": message,
			})
		},

		TokenLookup:   "header: Authorization",
		TokenHeadName: "Bearer",
	})
	if err != nil {
		return fmt.Errorf("failed to create auth middleware: %w", err)
	}

	authMiddleware = mw
	return nil
}

// AuthMiddleware 校验会话 token，会话 ID 写入 IdentityKey
func AuthMiddleware() app.HandlerFunc {
	if authMiddleware == nil {
		panic("AuthMiddleware not initialized, call Init() first")
	}
	return authMiddleware.MiddlewareFunc()
}

// GetSessionID 从请求上下文中获取会话 ID
func GetSessionID(ctx context.Context, c *app.RequestContext) (string, bool) {
	value, exists := c.Get(IdentityKey)
	if !exists {
		return "", false
	}

	sid, ok := value.(string)
	if !ok || sid == "" {
		return "", false
	}
	return sid, true
}
