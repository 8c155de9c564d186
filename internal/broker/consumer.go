package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Guizzs26/sample-outreach/pkg/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one delivery. Returning an error whose text starts with
// "FATAL:" marks the message as non-retryable; both ack modes route it to the
// dead-letter queue either way, the prefix only drives logging.
type Handler interface {
	HandleMessage(ctx context.Context, messageID string, body []byte) error
}

// AckMode selects the delivery guarantee of a consumer.
type AckMode int

const (
	// AtLeastOnce acks after successful processing; failures are rejected
	// without requeue, so the broker dead-letters them via the queue's DLX.
	AtLeastOnce AckMode = iota
	// AtMostOnce lets the broker auto-ack on delivery. A lost worker loses
	// the message instead of replaying a chat conversation; processing
	// failures are published to the dead-letter exchange by hand.
	AtMostOnce
)

// ConsumerOptions bounds the reconnect loop and the in-flight window.
type ConsumerOptions struct {
	PrefetchCount        int
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

// RabbitMQConsumer manages the connection and message flow from the broker
type RabbitMQConsumer struct {
	url      string
	topology Topology
	mode     AckMode
	opts     ConsumerOptions
	handler  Handler
	logger   *slog.Logger
}

func NewRabbitMQConsumer(url string, topology Topology, mode AckMode, opts ConsumerOptions, handler Handler, logger *slog.Logger) *RabbitMQConsumer {
	if opts.PrefetchCount <= 0 {
		opts.PrefetchCount = 1
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	return &RabbitMQConsumer{
		url:      url,
		topology: topology,
		mode:     mode,
		opts:     opts,
		handler:  handler,
		logger:   logger,
	}
}

// Listen consumes until ctx is cancelled, reconnecting on broker failures up
// to MaxReconnectAttempts consecutive times.
func (c *RabbitMQConsumer) Listen(ctx context.Context) error {
	attempts := 0
	for {
		err := c.consumeSession(ctx)
		if ctx.Err() != nil {
			return nil
		}

		attempts++
		metrics.BrokerReconnections.Inc()
		if c.opts.MaxReconnectAttempts > 0 && attempts >= c.opts.MaxReconnectAttempts {
			return fmt.Errorf("consumer gave up after %d reconnect attempts: %v", attempts, err)
		}

		c.logger.Error("Consumer session ended, reconnecting",
			"error", err, "attempt", attempts, "delay", c.opts.ReconnectDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

// consumeSession runs one connection lifetime: dial, declare, consume until
// the channel dies or ctx is cancelled.
func (c *RabbitMQConsumer) consumeSession(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %v", err)
	}
	defer ch.Close()

	if err := declareTopology(ch, c.topology); err != nil {
		return err
	}

	// QoS has no effect on auto-acked deliveries, but costs nothing to set
	if err := ch.Qos(c.opts.PrefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %v", err)
	}

	autoAck := c.mode == AtMostOnce
	msgs, err := ch.Consume(c.topology.Queue, "", autoAck, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %v", err)
	}

	metrics.HealthStatus.Set(1)
	c.logger.Info("Consumer is online and waiting for messages",
		"queue", c.topology.Queue, "binding_key", c.topology.BindingKey(), "auto_ack", autoAck)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				metrics.HealthStatus.Set(0)
				return fmt.Errorf("message channel closed")
			}
			c.handleDelivery(ctx, ch, d)
		}
	}
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) {
	messageID := deliveryID(d)
	l := c.logger.With("message_id", messageID, "routing_key", d.RoutingKey)

	err := c.handler.HandleMessage(ctx, messageID, d.Body)

	if c.mode == AtMostOnce {
		// Already acked by the broker; a failed message is gone from the
		// queue, so preserve it on the DLQ for inspection.
		if err != nil {
			l.Error("Processing failed, dead-lettering", "error", err)
			c.publishDeadLetter(ctx, ch, d.Body, messageID, err)
		}
		return
	}

	if err != nil {
		l.Error("Processing failed, rejecting without requeue", "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			l.Error("Failed to Nack message", "error", nackErr)
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		l.Error("Failed to Ack message", "error", ackErr)
	}
}

// publishDeadLetter mirrors what the broker does for rejected deliveries: the
// original body lands on the DLQ, annotated with the failure reason.
func (c *RabbitMQConsumer) publishDeadLetter(ctx context.Context, ch *amqp.Channel, body []byte, messageID string, cause error) {
	headers := amqp.Table{"x-error": cause.Error()}
	if messageID != "" {
		headers["x-original-message-id"] = messageID
	}

	err := ch.PublishWithContext(
		ctx,
		c.topology.DeadLetterExchange(),
		c.topology.DeadLetterRoutingKey(),
		false,
		false,
		amqp.Publishing{
			Headers:      headers,
			MessageId:    messageID,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		c.logger.Warn("Failed to publish to dead-letter exchange", "message_id", messageID, "error", err)
		return
	}
	metrics.DeadLetteredMessages.Inc()
}

func deliveryID(d amqp.Delivery) string {
	if d.MessageId != "" {
		return d.MessageId
	}
	if id, ok := d.Headers["task_id"].(string); ok {
		return id
	}
	return ""
}
