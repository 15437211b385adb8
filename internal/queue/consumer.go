package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"KikenQR/internal/cache"
	"KikenQR/internal/model"
	"KikenQR/pkg/errors"
	"KikenQR/pkg/logger"
	"KikenQR/storage/mq"
)

// processingTTL 处理中标记的有效期，worker 崩溃后到期可重新处理
const processingTTL = 10 * time.Minute

// MessageMarker 消息幂等标记
type MessageMarker interface {
	TryMark(ctx context.Context, messageID string, ttl time.Duration) (bool, error)
	Unmark(ctx context.Context, messageID string) error
	MarkProcessed(ctx context.Context, messageID string) error
}

type ClockInCounter interface {
	Incr(ctx context.Context, operationToken string, day time.Time, newSubject bool) error
}

// StatsHandler 消费打卡完成事件，维护每日计数
type StatsHandler struct {
	marker  MessageMarker
	counter ClockInCounter
}

func NewStatsHandler(marker MessageMarker, counter ClockInCounter) *StatsHandler {
	return &StatsHandler{marker: marker, counter: counter}
}

// Handle 重复投递返回 SkipMessageError；计数失败时撤销标记，让消息重新入队
func (h *StatsHandler) Handle(ctx context.Context, body []byte) error {
	var msg model.ClockInRecordedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// 无法解析的消息重试也没有意义
		return &errors.SkipMessageError{Reason: fmt.Sprintf("malformed clock-in message: %v", err)}
	}

	if msg.MessageID != "" {
		first, err := h.marker.TryMark(ctx, msg.MessageID, processingTTL)
		if err != nil {
			logger.L().Warn("Failed to check message processed status",
				zap.String("message_id", msg.MessageID),
				zap.Error(err),
			)
		} else if !first {
			return &errors.SkipMessageError{Reason: fmt.Sprintf("message %s already processed", msg.MessageID)}
		}
	}

	day := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, msg.OccurredAt); err == nil {
		day = t
	}

	if err := h.counter.Incr(ctx, msg.OperationToken, day, msg.NewSubject); err != nil {
		if msg.MessageID != "" {
			_ = h.marker.Unmark(ctx, msg.MessageID)
		}
		return err
	}

	if msg.MessageID != "" {
		if err := h.marker.MarkProcessed(ctx, msg.MessageID); err != nil {
			logger.L().Warn("Failed to mark message as processed",
				zap.String("message_id", msg.MessageID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// StartClockInStatsConsumer 阻塞直到 ctx 取消
func StartClockInStatsConsumer(ctx context.Context) error {
	handler := NewStatsHandler(redisMarker{}, redisCounter{})

	return mq.Consume(ctx, mq.ConsumeOptions{
		Queue:         mq.QueueClockInStats,
		ConsumerTag:   "clockin_stats_consumer",
		PrefetchCount: 20,
		Handler:       handler.Handle,
	})
}

type redisMarker struct{}

func (redisMarker) TryMark(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	return cache.TryMarkMessageProcessing(ctx, messageID, ttl)
}

func (redisMarker) Unmark(ctx context.Context, messageID string) error {
	return cache.UnmarkMessageProcessing(ctx, messageID)
}

func (redisMarker) MarkProcessed(ctx context.Context, messageID string) error {
	return cache.MarkMessageProcessed(ctx, messageID)
}

type redisCounter struct{}

func (redisCounter) Incr(ctx context.Context, operationToken string, day time.Time, newSubject bool) error {
	return cache.IncrClockInCount(ctx, operationToken, day, newSubject)
}
