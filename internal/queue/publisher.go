// Package queue moves JSON messages over RabbitMQ: durable queues,
// persistent deliveries and a reconnecting consumer.
package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	TicketEventsQueue  = "ferry.ticket.events"
	NotificationsQueue = "ferry.notifications"
)

// Publisher sends persistent JSON messages to one durable queue through the
// default exchange.
type Publisher struct {
	url   string
	queue string
}

func NewPublisher(url, queue string) *Publisher {
	return &Publisher{url: url, queue: queue}
}

// Publish opens a short-lived connection, declares the queue and sends body.
func (p *Publisher) Publish(ctx context.Context, body []byte) error {
	const op = "queue.Publisher.Publish"

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("%s: dial:%w", op, err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("%s: channel:%w", op, err)
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch, p.queue); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("%s: publish:%w", op, err)
	}

	return nil
}

func declare(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s:%w", queue, err)
	}
	return nil
}
