package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// RabbitMQBus publishes and consumes through one durable topic exchange.
// The connection is established lazily and re-established on the next call
// after a transport failure, so a consume loop can simply call Consume again.
type RabbitMQBus struct {
	url      string
	exchange string
	policy   FailurePolicy
	logger   *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	pub  *amqp.Channel
}

func NewRabbitMQBus(url, exchange string, policy FailurePolicy, logger *zap.Logger) *RabbitMQBus {
	return &RabbitMQBus{
		url:      url,
		exchange: exchange,
		policy:   policy,
		logger:   logger,
	}
}

// ensureLocked dials and declares the exchange if the connection is missing
// or has been closed by the broker. Callers must hold b.mu.
func (b *RabbitMQBus) ensureLocked() error {
	if b.conn != nil && !b.conn.IsClosed() {
		return nil
	}

	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open publish channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		b.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", b.exchange, err)
	}

	b.conn = conn
	b.pub = ch
	b.logger.Info("RabbitMQ connection established", zap.String("exchange", b.exchange))
	return nil
}

func (b *RabbitMQBus) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := encodeEnvelope(routingKey, payload)
	if err != nil {
		return err
	}

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, amqpHeaderCarrier(headers))

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLocked(); err != nil {
		return err
	}

	err = b.pub.Publish(
		b.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Headers:      headers,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	b.logger.Info("Event published", zap.String("routing_key", routingKey))
	return nil
}

// Consume binds the subscription's durable queue to the exchange and delivers
// one message at a time until ctx is cancelled or the transport fails.
func (b *RabbitMQBus) Consume(ctx context.Context, sub Subscription, h Handler) error {
	b.mu.Lock()
	err := b.ensureLocked()
	conn := b.conn
	b.mu.Unlock()
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	var queueArgs amqp.Table
	if b.policy == PolicyDeadLetter {
		if err := b.setupDeadLetter(ch, sub.Queue); err != nil {
			return err
		}
		queueArgs = amqp.Table{"x-dead-letter-exchange": b.exchange + ".dlx"}
	}

	queue, err := ch.QueueDeclare(sub.Queue, true, false, false, false, queueArgs)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", sub.Queue, err)
	}

	for _, pattern := range sub.Patterns {
		if err := ch.QueueBind(queue.Name, pattern, b.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %w", queue.Name, pattern, err)
		}
	}

	deliveries, err := ch.Consume(
		queue.Name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer on %s: %w", queue.Name, err)
	}

	b.logger.Info("Consumer started",
		zap.String("queue", queue.Name),
		zap.Strings("patterns", sub.Patterns),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			b.handleDelivery(ctx, delivery, h)
		}
	}
}

func (b *RabbitMQBus) handleDelivery(ctx context.Context, delivery amqp.Delivery, h Handler) {
	msgCtx := otel.GetTextMapPropagator().Extract(ctx, amqpHeaderCarrier(delivery.Headers))

	var env Envelope
	if err := json.Unmarshal(delivery.Body, &env); err != nil {
		b.logger.Error("Failed to unmarshal event envelope", zap.Error(err))
		b.reject(delivery)
		return
	}

	if err := h(msgCtx, env); err != nil {
		b.logger.Error("Failed to handle message",
			zap.String("event", env.Event),
			zap.String("failure_policy", string(b.policy)),
			zap.Error(err),
		)
		b.reject(delivery)
		return
	}

	if err := delivery.Ack(false); err != nil {
		b.logger.Error("Failed to ack message", zap.Error(err))
	}
}

func (b *RabbitMQBus) reject(delivery amqp.Delivery) {
	requeue := b.policy == PolicyRequeue
	if err := delivery.Nack(false, requeue); err != nil {
		b.logger.Error("Failed to nack message", zap.Error(err))
	}
}

// setupDeadLetter declares the companion dead-letter exchange and a durable
// queue capturing everything nacked off the given consumer queue.
func (b *RabbitMQBus) setupDeadLetter(ch *amqp.Channel, queueName string) error {
	dlx := b.exchange + ".dlx"
	if err := ch.ExchangeDeclare(dlx, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter exchange: %w", err)
	}
	dlq, err := ch.QueueDeclare(queueName+".dead", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare dead-letter queue: %w", err)
	}
	if err := ch.QueueBind(dlq.Name, "#", dlx, false, nil); err != nil {
		return fmt.Errorf("failed to bind dead-letter queue: %w", err)
	}
	return nil
}

func (b *RabbitMQBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}
	return b.conn.Close()
}

// amqpHeaderCarrier implements the TextMapCarrier interface for AMQP headers
// so trace context survives the broker hop.
type amqpHeaderCarrier amqp.Table

func (c amqpHeaderCarrier) Get(key string) string {
	if v, ok := c[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (c amqpHeaderCarrier) Set(key, value string) {
	c[key] = value
}

func (c amqpHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
