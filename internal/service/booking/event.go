package booking

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
)

type EventType string

const (
	TicketCreated   EventType = "ticket_created"
	TicketCancelled EventType = "ticket_cancelled"
)

// TicketEvent is a booking-side change that moves seats of one voyage.
type TicketEvent struct {
	EventID       string           `json:"event_id"`
	Type          EventType        `json:"type"`
	TicketID      uuid.UUID        `json:"ticket_id"`
	UserID        int64            `json:"user_id"`
	VoyageID      int64            `json:"voyage_id"`
	Class         seatmap.Class    `json:"class"`
	Seats         []domain.SeatRef `json:"seats"`
	PassengerName string           `json:"passenger_name,omitempty"`
}

// Result is what an applied event did. Replayed is set when the event had
// already been applied and the stored result is returned.
type Result struct {
	EventID   string    `json:"event_id"`
	TicketID  uuid.UUID `json:"ticket_id"`
	VoyageID  int64     `json:"voyage_id"`
	SoldCount int       `json:"sold_count"`
	Replayed  bool      `json:"replayed"`
}

func DecodeEvent(body []byte) (TicketEvent, error) {
	var ev TicketEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return ev, nil
}

// validate checks the event shape. Every seat must sit in a partition of the
// ticket's class, on either deck.
func (ev TicketEvent) validate() error {
	if ev.TicketID == uuid.Nil {
		return fmt.Errorf("%w: missing ticket id", ErrInvalidEvent)
	}
	if ev.VoyageID <= 0 {
		return fmt.Errorf("%w: missing voyage id", ErrInvalidEvent)
	}
	if len(ev.Seats) == 0 {
		return ErrEmptySelection
	}
	for _, s := range ev.Seats {
		if !s.Partition.Valid() {
			return fmt.Errorf("%w: partition %d", ErrInvalidEvent, uint8(s.Partition))
		}
		if s.Partition.Class() != ev.Class {
			return fmt.Errorf("%w: %s seat %d on a %s ticket", ErrClassMismatch, s.Partition, s.Index, ev.Class)
		}
	}
	return nil
}
