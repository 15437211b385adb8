package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"KikenQR/pkg/logger"
	"KikenQR/storage/database"
	"KikenQR/storage/mq"
	"KikenQR/storage/redis"
)

// Close 按 MQ -> Redis -> Database 的顺序关闭，未初始化的连接直接跳过
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.L().Info("Closing storage connections...")

	if err := mq.Close(ctx); err != nil {
		logger.L().Error("Failed to close message queue", zap.Error(err))
	} else {
		logger.L().Info("Message queue closed successfully")
	}

	if err := redis.Close(ctx); err != nil {
		logger.L().Error("Failed to close Redis connection", zap.Error(err))
	} else {
		logger.L().Info("Redis connection closed successfully")
	}

	if err := database.Close(ctx); err != nil {
		logger.L().Error("Failed to close database connection", zap.Error(err))
	} else {
		logger.L().Info("Database connection closed successfully")
	}

	logger.L().Info("All storage connections closed")
}
