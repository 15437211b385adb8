package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"

	pkgerrors "KikenQR/pkg/errors"
	"KikenQR/storage/redis"
)

const lockPrefix = "clockin:lock"

// SessionLocker 会话级分布式锁，同一会话的请求串行执行
type SessionLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

func NewSessionLocker(ttl time.Duration) *SessionLocker {
	return &SessionLocker{
		client: redislock.New(redis.Client()),
		ttl:    ttl,
	}
}

// Lock 不重试，拿不到锁直接返回 SessionBusy
func (l *SessionLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	lock, err := l.client.Obtain(ctx, redis.Key(lockPrefix, sessionID), l.ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, fmt.Errorf("session %s: %w", sessionID, pkgerrors.SessionBusy)
		}
		return nil, fmt.Errorf("failed to obtain session lock: %w", err)
	}

	return func() {
		// 请求可能已取消，释放锁用独立的 context
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}, nil
}
