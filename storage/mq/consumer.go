package mq

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"KikenQR/config"
	"KikenQR/pkg/errors"
	"KikenQR/pkg/logger"
	pkgmq "KikenQR/pkg/mq"
)

type MessageHandler func(ctx context.Context, body []byte) error

type ConsumeOptions struct {
	Queue         string
	ConsumerTag   string
	PrefetchCount int
	Handler       MessageHandler
}

// Consume 阻塞消费直到 ctx 取消或 channel 关闭。
// 处理成功或返回 SkipMessageError 时 ack，其余错误 nack 并重新入队。
func Consume(ctx context.Context, opts ConsumeOptions) error {
	if conn == nil {
		return errors.ErrMQConnectionNil
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	msgs, err := ch.Consume(opts.Queue, opts.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.L().Info("Started consuming messages",
		zap.String("queue", opts.Queue),
		zap.String("consumer_tag", opts.ConsumerTag),
		zap.Int("prefetch_count", opts.PrefetchCount),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", opts.Queue)
			}
			handleDelivery(ctx, opts, msg)
		}
	}
}

func handleDelivery(ctx context.Context, opts ConsumeOptions, msg amqp.Delivery) {
	msgCtx, span := pkgmq.StartConsumeSpan(ctx, config.Cfg.ServiceName, msg)
	defer span.End()

	start := time.Now()
	err := opts.Handler(msgCtx, msg.Body)

	var skip *errors.SkipMessageError
	switch {
	case err == nil:
		_ = msg.Ack(false)
		pkgmq.RecordConsumed(msgCtx, msg.RoutingKey, "success", time.Since(start))
	case stderrors.As(err, &skip):
		logger.L().Debug("Message skipped",
			zap.String("queue", opts.Queue),
			zap.String("message_id", msg.MessageId),
			zap.String("reason", skip.Reason),
		)
		_ = msg.Ack(false)
		pkgmq.RecordConsumed(msgCtx, msg.RoutingKey, "skipped", time.Since(start))
	default:
		logger.L().Error("Failed to process message",
			zap.String("queue", opts.Queue),
			zap.String("message_id", msg.MessageId),
			zap.Error(err),
		)
		span.RecordError(err)
		_ = msg.Nack(false, true)
		pkgmq.RecordConsumed(msgCtx, msg.RoutingKey, "error", time.Since(start))
	}
}
