package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher публикует payload в очередь/exchange RabbitMQ.
type Publisher interface {
	Publish(ctx context.Context, payload interface{}, correlationID string) error
	Close() error
}

// rabbitMQPublisher простая реализация Publisher поверх одного канала.
type rabbitMQPublisher struct {
	conn         *amqp091.Connection
	ch           *amqp091.Channel
	exchangeName string
	routingKey   string
	queueName    string // Используется для объявления очереди, если exchange пустой
	logger       *zap.Logger
	mu           sync.Mutex
}

// NewRabbitMQPublisher открывает канал и, при пустом exchange, объявляет
// durable-очередь (direct-to-queue публикация).
func NewRabbitMQPublisher(conn *amqp091.Connection, exchange, routingKey, queueName string, logger *zap.Logger) (Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel for publisher: %w", err)
	}

	// Если exchange не указан, объявляем очередь (предполагаем direct to queue)
	if exchange == "" && queueName != "" {
		_, err := ch.QueueDeclare(
			queueName,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // arguments
		)
		if err != nil {
			ch.Close()
			return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
		}
		// Если exchange не задан, routing key должен быть именем очереди
		if routingKey == "" {
			routingKey = queueName
		}
	}

	return &rabbitMQPublisher{
		conn:         conn,
		ch:           ch,
		exchangeName: exchange,
		routingKey:   routingKey,
		queueName:    queueName,
		logger:       logger.Named("RabbitMQPublisher"),
	}, nil
}

func (p *rabbitMQPublisher) Publish(ctx context.Context, payload interface{}, correlationID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return errors.New("publisher channel is closed")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchangeName,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:   "application/json",
			CorrelationId: correlationID,
			Body:          body,
			DeliveryMode:  amqp091.Persistent, // Делаем сообщения постоянными
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("Message published",
		zap.String("queue", p.queueName),
		zap.String("correlation_id", correlationID),
		zap.Int("body_size", len(body)))
	return nil
}

func (p *rabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		err := p.ch.Close()
		p.ch = nil
		return err
	}
	return nil // Канал уже закрыт
}
