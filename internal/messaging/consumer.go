package messaging

import (
	"context"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"staging-server/internal/config"
)

const (
	maxReconnectAttempts = 5
	reconnectDelay       = 5 * time.Second
)

// DeliveryHandler обрабатывает одно сообщение. Возвращает true, если
// сообщение нужно подтвердить (ack), false — nack с requeue.
type DeliveryHandler func(ctx context.Context, msg amqp091.Delivery) bool

// Connect подключается к RabbitMQ с повторными попытками.
func Connect(ctx context.Context, logger *zap.Logger, url string) (*amqp091.Connection, error) {
	var conn *amqp091.Connection
	var err error

	for attempt := 1; ; attempt++ {
		conn, err = amqp091.Dial(url)
		if err == nil {
			logger.Info("RabbitMQ connected successfully")
			return conn, nil
		}

		logger.Error("Failed to connect to RabbitMQ", zap.Int("attempt", attempt), zap.Error(err))
		if attempt >= maxReconnectAttempts {
			return nil, err
		}

		select {
		case <-time.After(reconnectDelay):
			logger.Info("Retrying RabbitMQ connection...")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Consume объявляет очередь и обрабатывает сообщения до отмены контекста
// или закрытия канала. Подтверждение ручное, prefetch = 1, чтобы воркер
// не забирал больше одной задачи за раз.
func Consume(ctx context.Context, logger *zap.Logger, conn *amqp091.Connection, queueCfg config.QueueConfig, consumerName string, handler DeliveryHandler) {
	if conn == nil {
		logger.Error("Cannot start consumer, RabbitMQ connection is nil")
		return
	}

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("Failed to open RabbitMQ channel for consumer", zap.Error(err))
		return
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		queueCfg.Name,
		queueCfg.Durable,
		queueCfg.AutoDelete,
		queueCfg.Exclusive,
		queueCfg.NoWait,
		nil, // arguments
	)
	if err != nil {
		logger.Error("Failed to declare queue", zap.String("queue", queueCfg.Name), zap.Error(err))
		return
	}
	logger.Info("Queue declared", zap.String("queue", q.Name), zap.Int("messages", q.Messages), zap.Int("consumers", q.Consumers))

	// Настраиваем Quality of Service (prefetch count)
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error("Failed to set QoS", zap.Error(err))
		return
	}

	msgs, err := ch.Consume(
		q.Name,       // queue
		consumerName, // consumer tag
		false,        // auto-ack (false, мы подтверждаем вручную)
		queueCfg.Exclusive,
		false, // no-local (не используется с очередями)
		queueCfg.NoWait,
		nil, // args
	)
	if err != nil {
		logger.Error("Failed to register consumer", zap.String("queue", q.Name), zap.Error(err))
		return
	}

	logger.Info("Consumer started, waiting for messages...", zap.String("queue", q.Name))

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				logger.Warn("Consumer channel closed by RabbitMQ")
				return
			}
			logger.Debug("Received a message", zap.Uint64("delivery_tag", msg.DeliveryTag))
			if handler(ctx, msg) {
				if ackErr := msg.Ack(false); ackErr != nil {
					logger.Error("Failed to ack message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(ackErr))
				}
			} else {
				if nackErr := msg.Nack(false, true); nackErr != nil {
					logger.Error("Failed to nack message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(nackErr))
				}
			}
		case <-ctx.Done():
			logger.Info("Context cancelled, stopping consumer...")
			return
		}
	}
}
