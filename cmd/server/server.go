package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"go.uber.org/zap"

	kcfg "KikenQR/config"
	"KikenQR/internal/middleware"
	"KikenQR/internal/router"
	"KikenQR/internal/service"
	"KikenQR/pkg/logger"
	"KikenQR/pkg/snowflake"
	"KikenQR/pkg/token"
	"KikenQR/storage"
)

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

	// 遥测须先于存储层初始化，gorm/redis 插件在 Init 时注册
	shutdownTelemetry := setupTelemetry(ctx, kcfg.Cfg.ServiceName)
	defer shutdownTelemetry()

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(kcfg.Cfg.SnowflakeMachineID, kcfg.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	// token 在中间件前初始化，middleware 依赖 token
	if err := token.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize token package", zap.Error(err))
	}

	if err := middleware.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize middlewares", zap.Error(err))
	}

	if err := service.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	addr := net.JoinHostPort(kcfg.Cfg.ServerHost, kcfg.Cfg.ServerPort)
	opts := []config.Option{server.WithHostPorts(addr)}

	var tracerMiddleware app.HandlerFunc
	if kcfg.Cfg.OTELEnabled {
		tracer, mw := middleware.NewServerTracerConfig()
		opts = append(opts, tracer)
		tracerMiddleware = mw
	}

	h := server.Default(opts...)
	if tracerMiddleware != nil {
		h.Use(tracerMiddleware)
	}
	router.Register(h)

	logger.Logger.Info("Server starting",
		zap.String("service", kcfg.Cfg.ServiceName),
		zap.String("addr", addr),
		zap.String("environment", kcfg.Cfg.Environment),
	)

	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	h.Spin()

	logger.Logger.Info("Server shutting down gracefully")
}
