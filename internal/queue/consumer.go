package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Outcome tells the consume loop what to do with a delivery.
type Outcome int

const (
	Ack     Outcome = iota
	Reject          // drop, do not requeue
	Requeue         // transient failure, deliver again
)

// HandlerFunc processes one message body.
type HandlerFunc func(ctx context.Context, body []byte) Outcome

// Consumer keeps a subscription to one durable queue alive across broker
// restarts, reconnecting with exponential backoff.
type Consumer struct {
	url     string
	queue   string
	handler HandlerFunc
	log     *slog.Logger
}

func NewConsumer(url, queueName string, handler HandlerFunc, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{url: url, queue: queueName, handler: handler, log: log.With("queue", queueName)}
}

// Run consumes until ctx is cancelled.  Connection failures are logged and
// retried; the method only returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("consumer: failed to dial broker", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consumer: consume loop ended; reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("consumer: set QoS failed", "err", err)
	}
	if _, err := declare(ch, c.queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			switch c.handler(ctx, d.Body) {
			case Ack:
				_ = d.Ack(false)
			case Requeue:
				_ = d.Nack(false, true)
			default:
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
