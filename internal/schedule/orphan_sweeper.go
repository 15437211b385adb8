package schedule

// 孤儿字段取值清理：字段取值先于打卡人/打卡记录写入，中途失败会留下未挂载的行

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	pkgerrors "KikenQR/pkg/errors"
	"KikenQR/pkg/logger"
)

const sweepLockName = "orphan_sweep"

// OrphanPurger 删除 before 之前写入的孤儿字段取值
type OrphanPurger interface {
	PurgeOrphanFieldValues(ctx context.Context, before time.Time) (int64, error)
}

// JobLocker 多实例部署时保证同一时刻只有一个清理任务
type JobLocker interface {
	Lock(ctx context.Context, name string) (func(), error)
}

type OrphanSweeper struct {
	purger    OrphanPurger
	locker    JobLocker
	retention time.Duration
	now       func() time.Time

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

func NewOrphanSweeper(purger OrphanPurger, locker JobLocker, retention time.Duration) *OrphanSweeper {
	return &OrphanSweeper{
		purger:    purger,
		locker:    locker,
		retention: retention,
		now:       time.Now,
	}
}

// Sweep 执行一次清理，返回删除的行数；其他实例持有锁时跳过
func (s *OrphanSweeper) Sweep(ctx context.Context) (int64, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.L().Info("Orphan sweep already running, skipping")
		return 0, nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.locker != nil {
		release, err := s.locker.Lock(ctx, sweepLockName)
		if err != nil {
			if errors.Is(err, pkgerrors.SessionBusy) {
				logger.L().Info("Orphan sweep held by another instance, skipping")
				return 0, nil
			}
			return 0, fmt.Errorf("failed to obtain sweep lock: %w", err)
		}
		defer release()
	}

	startTime := s.now()
	cutoff := startTime.Add(-s.retention)

	purged, err := s.purger.PurgeOrphanFieldValues(ctx, cutoff)
	if err != nil {
		logger.L().Error("Orphan sweep failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, err
	}

	s.mu.Lock()
	s.lastRun = startTime
	s.mu.Unlock()

	logger.L().Info("Orphan sweep completed",
		zap.Time("cutoff", cutoff),
		zap.Int64("purged", purged),
		zap.Duration("elapsed", s.now().Sub(startTime)),
	)
	return purged, nil
}

func (s *OrphanSweeper) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Run 按 interval 周期执行，阻塞直到 ctx 取消
func (s *OrphanSweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			_, _ = s.Sweep(runCtx)
			cancel()
		}
	}
}
