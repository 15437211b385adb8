package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"KikenQR/config"
	"KikenQR/internal/cache"
	"KikenQR/internal/repository"
	"KikenQR/internal/schedule"
	"KikenQR/pkg/logger"
	"KikenQR/storage"
	"KikenQR/storage/database"
)

func main() {
	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Scheduler received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage for scheduler", zap.Error(err))
	}
	defer storage.Close()

	store, err := repository.NewStore(database.DB())
	if err != nil {
		logger.Logger.Fatal("Failed to create store for scheduler", zap.Error(err))
	}

	sweeper := schedule.NewOrphanSweeper(store, cache.NewSessionLocker(10*time.Minute), config.Cfg.OrphanRetention())

	interval := config.Cfg.OrphanSweepInterval()
	if config.Cfg.IsDevelopment() {
		interval = time.Minute
		logger.Logger.Info("Orphan sweep running in development mode with 1m interval")
	}

	logger.Logger.Info("Scheduler service starting",
		zap.String("service", "kikenqr-scheduler"),
		zap.String("environment", config.Cfg.Environment),
		zap.Duration("sweep_interval", interval),
	)

	sweeper.Run(ctx, interval)

	logger.Logger.Info("Scheduler service shutting down gracefully")
}
