package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as unrecoverable: the message is moved to the dead-letter
// queue instead of being redelivered.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Message is the part of a delivery handlers see.
type Message struct {
	ID          string
	Body        []byte
	Redelivered bool
}

// MessageHandler processes one message. A nil return acks it.
type MessageHandler func(ctx context.Context, msg Message) error

// ConsumerConfig configures a Consumer. RetryDelay paces reconnects;
// RequeueDelay holds a failed delivery before it goes back to the queue.
type ConsumerConfig struct {
	URL          string
	Queue        string
	DeadLetter   string
	Prefetch     int
	RetryDelay   time.Duration
	RequeueDelay time.Duration
	Logger       *zap.Logger
}

// Consumer reads a durable queue with manual acknowledgements and reconnects
// when the connection drops.
type Consumer struct {
	cfg    ConsumerConfig
	logger *zap.Logger
}

// NewConsumer validates cfg and builds a consumer.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if cfg.URL == "" || cfg.Queue == "" {
		return nil, errors.New("broker url and queue are required")
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.RequeueDelay <= 0 {
		cfg.RequeueDelay = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Consumer{cfg: cfg, logger: cfg.Logger.With(zap.String("queue", cfg.Queue))}, nil
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handler MessageHandler) error {
	for {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("consumer disconnected, reconnecting", zap.Error(err), zap.Duration("delay", c.cfg.RetryDelay))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.RetryDelay):
		}
	}
}

func (c *Consumer) consume(ctx context.Context, handler MessageHandler) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close() //nolint:errcheck

	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if c.cfg.DeadLetter != "" {
		if _, err := ch.QueueDeclare(c.cfg.DeadLetter, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dead-letter queue: %w", err)
		}
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	c.logger.Info("consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("connection closed")
			}
			return amqpErr
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.dispatch(ctx, ch, d, handler)
		}
	}
}

// acknowledger is the part of amqp.Delivery that settles a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *Consumer) dispatch(ctx context.Context, ch *amqp.Channel, d amqp.Delivery, handler MessageHandler) {
	msg := Message{ID: d.MessageId, Body: d.Body, Redelivered: d.Redelivered}
	err := handler(ctx, msg)
	if err != nil && IsPermanent(err) {
		c.deadLetter(ctx, ch, d, err)
		return
	}
	c.settle(ctx, &d, err)
}

// settle acks a handled delivery. A transient failure is held for
// RequeueDelay before the nack so a failing dependency is not retried in a
// tight loop.
func (c *Consumer) settle(ctx context.Context, d acknowledger, err error) {
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("ack failed", zap.Error(ackErr))
		}
		return
	}
	c.logger.Warn("message handling failed, requeueing", zap.Error(err), zap.Duration("delay", c.cfg.RequeueDelay))
	timer := time.NewTimer(c.cfg.RequeueDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	if nackErr := d.Nack(false, true); nackErr != nil {
		c.logger.Error("nack failed", zap.Error(nackErr))
	}
}

func (c *Consumer) deadLetter(ctx context.Context, ch *amqp.Channel, d amqp.Delivery, cause error) {
	c.logger.Error("message dead-lettered", zap.Error(cause), zap.ByteString("body", d.Body))
	if c.cfg.DeadLetter == "" {
		_ = d.Nack(false, false)
		return
	}
	err := ch.PublishWithContext(ctx, "", c.cfg.DeadLetter, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{"x-error": cause.Error(), "x-original-queue": c.cfg.Queue},
		Body:         d.Body,
	})
	if err != nil {
		c.logger.Error("dead-letter publish failed, requeueing", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	if err := d.Ack(false); err != nil {
		c.logger.Error("ack failed", zap.Error(err))
	}
}
