package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func DeadLetterQueue(queue string) string {
	return queue + ".dlq"
}

// declareQueues declares the durable work queue and the dead-letter queue that
// rejected deliveries are routed to.
func declareQueues(ch *amqp.Channel, queue string) error {
	dlq := DeadLetterQueue(queue)
	if _, err := ch.QueueDeclare(
		dlq,   // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		return fmt.Errorf("declare %s: %w", dlq, err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlq,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	return nil
}

// confirmation is the broker's answer for one published message.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

type confirmingChannel interface {
	publish(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error)
	Close() error
}

// amqpChannel publishes in confirm mode and hands back the confirmation for that message only.
type amqpChannel struct {
	ch *amqp.Channel
}

func (c amqpChannel) publish(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error) {
	dc, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, msg)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, errors.New("channel is not in confirm mode")
	}
	return dc, nil
}

func (c amqpChannel) Close() error {
	return c.ch.Close()
}

// QueuePublisher is a Sink that hands notifications to the notify worker through RabbitMQ.
type QueuePublisher struct {
	ch    confirmingChannel
	queue string
}

func NewQueuePublisher(conn *amqp.Connection, queue string) (*QueuePublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareQueues(ch, queue); err != nil {
		_ = ch.Close()
		return nil, err
	}

	// publisher confirms so Deliver only succeeds once the broker has the message
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	return &QueuePublisher{ch: amqpChannel{ch: ch}, queue: queue}, nil
}

// Deliver publishes n and waits for the broker to confirm that message. A confirm that
// arrives after ctx is done is dropped with its own message.
func (p *QueuePublisher) Deliver(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID.String(),
		Timestamp:    n.CreatedAt,
		Type:         n.Type,
	}

	conf, err := p.ch.publish(ctx, p.queue, msg)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}

	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	if !acked {
		return fmt.Errorf("publish to %s: message not confirmed", p.queue)
	}
	return nil
}

func (p *QueuePublisher) Close() error {
	return p.ch.Close()
}

// Consumer drains the notification queue into a Sink. Deliveries that cannot be decoded
// or delivered are rejected to the dead-letter queue and never requeued.
type Consumer struct {
	ch      *amqp.Channel
	queue   string
	sink    Sink
	log     *zap.Logger
	timeout time.Duration
}

func NewConsumer(conn *amqp.Connection, queue string, sink Sink, log *zap.Logger, prefetch int, timeout time.Duration) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareQueues(ch, queue); err != nil {
		_ = ch.Close()
		return nil, err
	}

	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Consumer{ch: ch, queue: queue, sink: sink, log: log, timeout: timeout}, nil
}

// Run consumes until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var n Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		c.log.Error("dropping undecodable notification", zap.String("message_id", d.MessageId), zap.Error(err))
		c.reject(d)
		return
	}

	timeout := c.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deliverCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.sink.Deliver(deliverCtx, n); err != nil {
		c.log.Warn("notification delivery failed, dead-lettering",
			zap.String("notification_id", n.ID.String()),
			zap.String("type", n.Type),
			zap.Error(err),
		)
		c.reject(d)
		return
	}

	if err := d.Ack(false); err != nil {
		c.log.Error("ack failed", zap.String("notification_id", n.ID.String()), zap.Error(err))
	}
}

func (c *Consumer) reject(d amqp.Delivery) {
	if err := d.Nack(false, false); err != nil {
		c.log.Error("nack failed", zap.String("message_id", d.MessageId), zap.Error(err))
	}
}
