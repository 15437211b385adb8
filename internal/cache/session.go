package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pkgerrors "KikenQR/pkg/errors"
	"KikenQR/storage/redis"
)

const sessionPrefix = "clockin:session"

// SessionStore 以 JSON 快照保存打卡会话，每次写入刷新 TTL
type SessionStore struct{}

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

func (SessionStore) Save(ctx context.Context, sessionID string, snapshot []byte, ttl time.Duration) error {
	if err := redis.Client().Set(ctx, redis.Key(sessionPrefix, sessionID), snapshot, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (SessionStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := redis.Client().Get(ctx, redis.Key(sessionPrefix, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("session %s: %w", sessionID, pkgerrors.SessionNotFound)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return data, nil
}
