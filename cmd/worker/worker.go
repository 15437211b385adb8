package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"KikenQR/config"
	"KikenQR/internal/queue"
	"KikenQR/pkg/logger"
	pkgmq "KikenQR/pkg/mq"
	pkgotel "KikenQR/pkg/otel"
	pkgredis "KikenQR/pkg/redis"
	"KikenQR/storage"
)

const workerServiceName = "kikenqr-worker"

func main() {
	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	shutdownTelemetry := setupWorkerTelemetry(ctx)
	defer shutdownTelemetry()

	// worker 不访问数据库，只需要 Redis 与 RabbitMQ
	if err := storage.InitWorker(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	logger.Logger.Info("Worker service starting",
		zap.String("service", workerServiceName),
		zap.String("environment", config.Cfg.Environment),
	)

	if err := queue.StartClockInStatsConsumer(ctx); err != nil && ctx.Err() == nil {
		logger.Logger.Error("Clock-in stats consumer stopped", zap.Error(err))
	}

	logger.Logger.Info("Worker service shutting down gracefully")
}

func setupWorkerTelemetry(ctx context.Context) func() {
	if !config.Cfg.OTELEnabled {
		return func() {}
	}

	shutdown, err := pkgotel.InitOpenTelemetry(ctx, pkgotel.Config{
		ServiceName:    workerServiceName,
		ServiceVersion: "1.0.0",
		Environment:    config.Cfg.Environment,
		OTLPEndpoint:   config.Cfg.OTELEndpoint,
		SampleRatio:    config.Cfg.OTELSampleRatio,
	})
	if err != nil {
		logger.Logger.Warn("Failed to initialize OpenTelemetry, continuing without telemetry", zap.Error(err))
		return func() {}
	}

	meter := otel.Meter(workerServiceName)
	if err := pkgredis.InitRedisMetrics(meter); err != nil {
		logger.Logger.Warn("Failed to initialize redis metrics", zap.Error(err))
	}
	if err := pkgmq.InitMQMetrics(meter); err != nil {
		logger.Logger.Warn("Failed to initialize mq metrics", zap.Error(err))
	}

	return func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}
}
