package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"KikenQR/config"
	"KikenQR/internal/model"
	"KikenQR/pkg/logger"
	"KikenQR/pkg/snowflake"
	"KikenQR/storage/mq"
)

// ClockInPublisher 发布打卡完成事件到 clockin exchange
type ClockInPublisher struct {
	exchange string
}

func NewClockInPublisher() *ClockInPublisher {
	return &ClockInPublisher{exchange: config.Cfg.ClockInExchange}
}

// PublishClockInRecorded MessageID 为空时生成 snowflake ID
func (p *ClockInPublisher) PublishClockInRecorded(ctx context.Context, msg model.ClockInRecordedMessage) error {
	if msg.MessageID == "" {
		id, err := snowflake.NextMessageID()
		if err != nil {
			return fmt.Errorf("failed to generate message ID: %w", err)
		}
		msg.MessageID = "clockin_" + id
	}

	if err := mq.PublishMessage(ctx, p.exchange, mq.RoutingKeyClockInRecorded, msg.MessageID, msg); err != nil {
		logger.L().Error("Failed to publish clock-in recorded message",
			zap.String("message_id", msg.MessageID),
			zap.Int64("clock_in_id", msg.ClockInID),
			zap.Error(err),
		)
		return err
	}

	logger.L().Debug("Published clock-in recorded message",
		zap.String("message_id", msg.MessageID),
		logger.OperationToken(msg.OperationToken),
		zap.Int64("clock_in_id", msg.ClockInID),
	)
	return nil
}
