package main

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	kcfg "KikenQR/config"
	"KikenQR/internal/middleware"
	pkgdatabase "KikenQR/pkg/database"
	"KikenQR/pkg/logger"
	"KikenQR/pkg/metrics"
	pkgmq "KikenQR/pkg/mq"
	pkgotel "KikenQR/pkg/otel"
	pkgredis "KikenQR/pkg/redis"
)

// setupTelemetry OTEL_ENABLED=false 时什么都不做；指标初始化失败只告警
func setupTelemetry(ctx context.Context, serviceName string) func() {
	if !kcfg.Cfg.OTELEnabled {
		return func() {}
	}

	shutdown, err := pkgotel.InitOpenTelemetry(ctx, pkgotel.Config{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    kcfg.Cfg.Environment,
		OTLPEndpoint:   kcfg.Cfg.OTELEndpoint,
		SampleRatio:    kcfg.Cfg.OTELSampleRatio,
	})
	if err != nil {
		logger.Logger.Warn("Failed to initialize OpenTelemetry, continuing without telemetry", zap.Error(err))
		return func() {}
	}

	meter := otel.Meter(serviceName)
	inits := map[string]func() error{
		"http":     func() error { return middleware.InitMetrics(meter) },
		"database": func() error { return pkgdatabase.InitDatabaseMetrics(meter) },
		"redis":    func() error { return pkgredis.InitRedisMetrics(meter) },
		"mq":       func() error { return pkgmq.InitMQMetrics(meter) },
		"clockin":  metrics.InitMetrics,
	}
	for name, initFn := range inits {
		if err := initFn(); err != nil {
			logger.Logger.Warn("Failed to initialize metrics", zap.String("component", name), zap.Error(err))
		}
	}

	logger.Logger.Info("OpenTelemetry initialized", zap.String("endpoint", kcfg.Cfg.OTELEndpoint))

	return func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}
}
