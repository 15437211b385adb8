package storage

import (
	"KikenQR/storage/database"
	"KikenQR/storage/mq"
	"KikenQR/storage/redis"
)

// Init 统一初始化存储层：数据库 -> Redis -> RabbitMQ
func Init() error {
	if err := database.Init(); err != nil {
		return err
	}

	if err := redis.Init(); err != nil {
		return err
	}

	return mq.Init()
}

// InitWorker worker 只依赖 Redis 与 RabbitMQ
func InitWorker() error {
	if err := redis.Init(); err != nil {
		return err
	}

	return mq.Init()
}
