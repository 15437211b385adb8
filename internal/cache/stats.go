package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"KikenQR/storage/redis"
)

const (
	countPrefix = "clockin:count"
	countTTL    = 8 * 24 * time.Hour
	dayLayout   = "2006-01-02"
)

// CountKey 按运营活动和日期（UTC）分桶
func CountKey(operationToken string, day time.Time) string {
	return redis.Key(countPrefix, operationToken, day.UTC().Format(dayLayout))
}

// IncrClockInCount 计数加一，键保留一周左右
func IncrClockInCount(ctx context.Context, operationToken string, day time.Time, newSubject bool) error {
	key := CountKey(operationToken, day)

	pipe := redis.Client().TxPipeline()
	pipe.HIncrBy(ctx, key, "events", 1)
	if newSubject {
		pipe.HIncrBy(ctx, key, "new_subjects", 1)
	}
	pipe.Expire(ctx, key, countTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment clock-in count: %w", err)
	}
	return nil
}

type ClockInCount struct {
	Events      int64 `json:"events"`
	NewSubjects int64 `json:"new_subjects"`
}

func GetClockInCount(ctx context.Context, operationToken string, day time.Time) (ClockInCount, error) {
	var out ClockInCount
	values, err := redis.Client().HMGet(ctx, CountKey(operationToken, day), "events", "new_subjects").Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return out, fmt.Errorf("failed to read clock-in count: %w", err)
	}

	out.Events = parseCount(values, 0)
	out.NewSubjects = parseCount(values, 1)
	return out, nil
}

func parseCount(values []interface{}, idx int) int64 {
	if idx >= len(values) {
		return 0
	}
	s, ok := values[idx].(string)
	if !ok {
		return 0
	}
	var n int64
	_, _ = fmt.Sscan(s, &n)
	return n
}
