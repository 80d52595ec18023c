package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue names shared by the publisher and the consumers.
const (
	BookingConfirmedQueue = "booking.confirmed"
	PaymentEventsQueue    = "payments.events"
)

// Publisher sends domain events to RabbitMQ.  Each publish dials, declares
// the durable queue and sends one persistent message; errors are logged
// and returned so the caller can choose to ignore them.
type Publisher struct {
	url string
	log *slog.Logger
}

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{url: url, log: log}
}

// PublishBookingConfirmed publishes ev to the booking.confirmed queue.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
	return p.publish(ctx, BookingConfirmedQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queueName string, v any) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("rabbitmq: dial failed", "err", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq: channel open failed", "err", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := declare(ch, queueName); err != nil {
		p.log.Warn("rabbitmq: queue declare failed", "queue", queueName, "err", err)
		return err
	}

	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		p.log.Warn("rabbitmq: publish failed", "queue", queueName, "err", err)
		return err
	}
	return nil
}

func declare(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
}
