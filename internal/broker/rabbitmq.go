package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Guizzs26/sample-outreach/internal/models"
	"github.com/Guizzs26/sample-outreach/pkg/metrics"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology derives every broker name from the exchange / queue / routing-key
// prefix triple. Producer and consumers must agree on these, so they are
// computed in one place.
type Topology struct {
	Exchange         string
	Queue            string
	RoutingKeyPrefix string
}

func (t Topology) BindingKey() string           { return t.RoutingKeyPrefix + ".*" }
func (t Topology) PublishKey() string           { return t.RoutingKeyPrefix + ".batch" }
func (t Topology) DeadLetterExchange() string   { return t.Exchange + ".dlx" }
func (t Topology) DeadLetterQueue() string      { return t.Queue + ".dead" }
func (t Topology) DeadLetterRoutingKey() string { return t.BindingKey() + ".dead" }

// declareTopology sets up the full publish/consume/dead-letter graph. It is
// idempotent; both producer and consumer call it so whichever starts first
// owns nothing.
func declareTopology(ch *amqp.Channel, t Topology) error {
	if err := ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare topic exchange: %v", err)
	}

	if err := ch.ExchangeDeclare(t.DeadLetterExchange(), "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter exchange: %v", err)
	}

	dlq, err := ch.QueueDeclare(t.DeadLetterQueue(), true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare dead-letter queue: %v", err)
	}
	if err := ch.QueueBind(dlq.Name, t.DeadLetterRoutingKey(), t.DeadLetterExchange(), false, nil); err != nil {
		return fmt.Errorf("failed to bind dead-letter queue: %v", err)
	}

	q, err := ch.QueueDeclare(t.Queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    t.DeadLetterExchange(),
		"x-dead-letter-routing-key": t.DeadLetterRoutingKey(),
	})
	if err != nil {
		return fmt.Errorf("failed to declare queue: %v", err)
	}
	if err := ch.QueueBind(q.Name, t.BindingKey(), t.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %v", err)
	}

	return nil
}

// NewTaskID generates a dispatch task id. Uppercase UUIDs are the wire
// convention for everything this system names.
func NewTaskID() string {
	return strings.ToUpper(uuid.NewString())
}

// RabbitMQClient handles the low-level communication with the message broker
type RabbitMQClient struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	topology   Topology
	logger     *slog.Logger
	connClosed chan *amqp.Error
	chanClosed chan *amqp.Error
	closeOnce  sync.Once
	healthy    atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewRabbitMQClient initializes a connection and a channel, declares the full
// topology, and enables Publisher Confirms by default
func NewRabbitMQClient(url string, topology Topology, l *slog.Logger) (*RabbitMQClient, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	ch, err := c.Channel()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %v", err)
	}

	if err := declareTopology(ch, topology); err != nil {
		ch.Close()
		c.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to activate Publisher Confirms: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &RabbitMQClient{
		conn:       c,
		channel:    ch,
		topology:   topology,
		logger:     l,
		connClosed: make(chan *amqp.Error, 1),
		chanClosed: make(chan *amqp.Error, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	client.healthy.Store(true)
	metrics.HealthStatus.Set(1)

	client.conn.NotifyClose(client.connClosed)
	client.channel.NotifyClose(client.chanClosed)

	go func() {
		select {
		case err := <-client.connClosed:
			client.healthy.Store(false)
			// System is unhealthy
			metrics.HealthStatus.Set(0)
			l.Warn("RabbitMQ connection closed", "error", err)
		case err := <-client.chanClosed:
			client.healthy.Store(false)
			// System is unhealthy
			metrics.HealthStatus.Set(0)
			l.Warn("RabbitMQ channel closed", "error", err)
		case <-client.ctx.Done():
			return
		}
	}()
	l.Info("Successfully connected to RabbitMQ and monitors established", "exchange", topology.Exchange, "queue", topology.Queue)
	return client, nil
}

// buildPublishing wraps one task into its wire form: a JSON array holding the
// single task, with the task id repeated in the headers for tracing.
func buildPublishing(task models.DispatchTask) (amqp.Publishing, error) {
	if task.TaskID == "" {
		task.TaskID = NewTaskID()
	}

	body, err := json.Marshal([]models.DispatchTask{task})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to serialize dispatch task: %v", err)
	}

	return amqp.Publishing{
		Headers: amqp.Table{
			"task_id":    task.TaskID,
			"task_count": int32(1),
		},
		MessageId:    task.TaskID,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}, nil
}

// PublishDispatchTask sends one task to the broker and blocks until a
// confirmation (ACK/NACK) is received
func (r *RabbitMQClient) PublishDispatchTask(ctx context.Context, task models.DispatchTask) error {
	if !r.IsHealthy() {
		return fmt.Errorf("broker connection is closed")
	}

	publishing, err := buildPublishing(task)
	if err != nil {
		return err
	}

	l := r.logger.With(
		"task_id", publishing.MessageId,
		"routing_key", r.topology.PublishKey(),
	)

	deferred, err := r.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		r.topology.Exchange,
		r.topology.PublishKey(),
		false,
		false,
		publishing,
	)
	if err != nil {
		l.Error("failed to publish message to exchange", "error", err)
		return fmt.Errorf("publish call failed: %v", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-deferred.Done():
		if !deferred.Acked() {
			return fmt.Errorf("RabbitMQ NACK received: message not persisted")
		}
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("publisher confirm timeout")
	}
}

// Close gracefully shuts down the RabbitMQ resources
func (r *RabbitMQClient) Close() error {
	r.closeOnce.Do(func() {
		r.logger.Info("Terminating RabbitMQ client")
		r.cancel()
		if r.channel != nil {
			r.channel.Close()
		}
		if r.conn != nil {
			r.conn.Close()
		}
	})
	return nil
}

// IsHealthy returns true if the connection and channel are active
func (r *RabbitMQClient) IsHealthy() bool {
	return r.healthy.Load()
}
