package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"KikenQR/internal/model"
	"KikenQR/pkg/logger"
)

// Migrate 对全局连接运行迁移
func Migrate() error {
	return MigrateDB(DB())
}

// MigrateDB 创建打卡相关的表和索引，测试里也对 SQLite 连接调用
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}

	logger.L().Info("Starting database migration...")

	err := db.AutoMigrate(
		&model.Operation{},
		&model.FieldDefinition{},
		&model.ClockInEmployee{},
		&model.FieldValue{},
		&model.ClockIn{},
	)
	if err != nil {
		logger.L().Error("Database migration failed", zap.Error(err))
		return err
	}

	logger.L().Info("Database migration completed successfully")
	return nil
}
