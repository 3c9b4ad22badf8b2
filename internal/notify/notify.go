// Package notify emits user-facing events after seat and archive changes.
// Delivery is fire-and-forget: callers log failures and never roll back.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type EventKind string

const (
	SeatsAllocated EventKind = "seats_allocated"
	SeatsReleased  EventKind = "seats_released"
	TicketArchived EventKind = "ticket_archived"
)

type Notifier interface {
	Notify(ctx context.Context, userID int64, kind EventKind, payload any) error
}

// Envelope is the wire form of a notification.
type Envelope struct {
	UserID  int64     `json:"user_id"`
	Kind    EventKind `json:"kind"`
	Payload any       `json:"payload,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// Publisher delivers an encoded envelope to a transport.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// PublisherNotifier encodes notifications as JSON envelopes for a Publisher.
type PublisherNotifier struct {
	pub Publisher
	now func() time.Time
}

func NewPublisherNotifier(pub Publisher) *PublisherNotifier {
	return &PublisherNotifier{pub: pub, now: time.Now}
}

func (n *PublisherNotifier) Notify(ctx context.Context, userID int64, kind EventKind, payload any) error {
	const op = "notify.PublisherNotifier.Notify"

	body, err := json.Marshal(Envelope{
		UserID:  userID,
		Kind:    kind,
		Payload: payload,
		SentAt:  n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := n.pub.Publish(ctx, body); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// LogNotifier writes notifications to a structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, userID int64, kind EventKind, payload any) error {
	n.logger.InfoContext(ctx, "notification",
		slog.Int64("user_id", userID),
		slog.String("kind", string(kind)),
		slog.Any("payload", payload),
	)
	return nil
}

// Fanout delivers to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, userID int64, kind EventKind, payload any) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, userID, kind, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Emit sends a notification and only logs a failure.
func Emit(ctx context.Context, n Notifier, logger *slog.Logger, userID int64, kind EventKind, payload any) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, userID, kind, payload); err != nil {
		logger.WarnContext(ctx, "notification failed",
			slog.Int64("user_id", userID),
			slog.String("kind", string(kind)),
			slog.Any("error", err),
		)
	}
}
