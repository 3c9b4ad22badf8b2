package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one message body. A nil error acks the delivery.
type Handler func(ctx context.Context, body []byte) error

type Consumer struct {
	url      string
	queue    string
	prefetch int
	handle   Handler
	requeue  func(error) bool
	logger   *slog.Logger
}

type ConsumerOption func(*Consumer)

// WithRequeue decides which handler errors put the delivery back on the
// queue. Everything else is rejected.
func WithRequeue(fn func(error) bool) ConsumerOption {
	return func(c *Consumer) { c.requeue = fn }
}

func WithPrefetch(n int) ConsumerOption {
	return func(c *Consumer) { c.prefetch = n }
}

func WithConsumerLogger(l *slog.Logger) ConsumerOption {
	return func(c *Consumer) { c.logger = l }
}

func NewConsumer(url, queue string, handle Handler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		url:      url,
		queue:    queue,
		prefetch: 50,
		handle:   handle,
		requeue:  func(error) bool { return false },
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run consumes until ctx is done, reconnecting with exponential backoff
// whenever the broker is unreachable or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.WarnContext(ctx, "queue dial failed",
				slog.String("queue", c.queue),
				slog.Duration("retry_in", backoff),
				slog.Any("error", err),
			)
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.logger.WarnContext(ctx, "queue consume ended, reconnecting",
			slog.String("queue", c.queue),
			slog.Any("error", err),
		)
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open:%w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.logger.WarnContext(ctx, "queue qos failed", slog.Any("error", err))
	}

	if err := declare(ch, c.queue); err != nil {
		return err
	}

	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume:%w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.deliver(ctx, d)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery) {
	if err := c.handle(ctx, d.Body); err != nil {
		requeue := c.requeue(err)
		c.logger.ErrorContext(ctx, "queue message failed",
			slog.String("queue", c.queue),
			slog.Bool("requeue", requeue),
			slog.Any("error", err),
		)
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
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
