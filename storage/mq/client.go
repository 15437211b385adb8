package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"KikenQR/config"
	"KikenQR/pkg/logger"
)

const (
	// RoutingKeyClockInRecorded 打卡完成事件
	RoutingKeyClockInRecorded = "clockin.recorded"
	// QueueClockInStats worker 维护每日计数的队列
	QueueClockInStats = "clockin.recorded.stats"
)

var (
	conn     *amqp.Connection
	connOnce sync.Once
	connErr  error
)

func Init() error {
	connOnce.Do(func() {
		conn, connErr = amqp.Dial(config.Cfg.GetRabbitMQURL())
		if connErr != nil {
			return
		}

		connErr = declareTopology(config.Cfg.ClockInExchange)
		if connErr != nil {
			_ = conn.Close()
			conn = nil
			return
		}

		logger.L().Info("RabbitMQ connected",
			zap.String("exchange", config.Cfg.ClockInExchange),
			zap.String("queue", QueueClockInStats),
		)
	})

	return connErr
}

// declareTopology topic exchange + 统计队列，重复声明是幂等的
func declareTopology(exchange string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(QueueClockInStats, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", QueueClockInStats, err)
	}
	if err := ch.QueueBind(QueueClockInStats, RoutingKeyClockInRecorded, exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", QueueClockInStats, err)
	}
	return nil
}

func Connection() *amqp.Connection {
	return conn
}

func Close(ctx context.Context) error {
	pubMutex.Lock()
	if publisherCh != nil {
		_ = publisherCh.Close()
		publisherCh = nil
	}
	pubMutex.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
