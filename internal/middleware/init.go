package middleware

import (
	"go.uber.org/zap"

	"KikenQR/pkg/logger"
)

// Init 初始化需要依赖其他组件的中间件，须在 token.Init 之后调用
func Init() error {
	if err := initAuthMiddleware(); err != nil {
		logger.L().Error("Failed to initialize auth middleware", zap.Error(err))
		return err
	}

	logger.L().Info("All middlewares initialized successfully")
	return nil
}
