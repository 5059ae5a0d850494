// Package broker moves registration messages over AMQP 0-9-1.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/noah-isme/iufc-admission-api/pkg/middleware/requestid"
)

// ErrNotConfirmed is returned when the broker nacks a published message.
var ErrNotConfirmed = errors.New("message not confirmed by broker")

// Publisher sends one message to a named queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// AMQPPublisher opens a short-lived connection per message and waits for the
// publisher confirm before returning.
type AMQPPublisher struct {
	url     string
	timeout time.Duration
	logger  *zap.Logger
	dial    func(url string) (*amqp.Connection, error)
}

// NewAMQPPublisher constructs a publisher for url.
func NewAMQPPublisher(url string, timeout time.Duration, logger *zap.Logger) *AMQPPublisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPublisher{url: url, timeout: timeout, logger: logger, dial: amqp.Dial}
}

// Publish declares queue as durable and publishes body as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, queue string, body []byte) error {
	if p.url == "" {
		return errors.New("broker url not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close() //nolint:errcheck

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable confirms: %w", err)
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, true, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		CorrelationId: requestid.FromContext(ctx),
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm from %s: %w", queue, err)
	}
	if !ok {
		return ErrNotConfirmed
	}
	p.logger.Debug("message published", zap.String("queue", queue), zap.Int("bytes", len(body)))
	return nil
}
