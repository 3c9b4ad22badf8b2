// Package booking applies ticket events from the booking side to seat
// inventory and the live ticket table.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/notify"
	"github.com/kirinyoku/ferry-go/internal/repository"
	redisrepo "github.com/kirinyoku/ferry-go/internal/repository/redis"
	"github.com/kirinyoku/ferry-go/internal/service/inventory"
	"github.com/kirinyoku/ferry-go/internal/uow"
)

// Idempotency remembers applied event ids.
type Idempotency interface {
	AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	SaveResult(ctx context.Context, key string, jsonPayload string) error
	GetResult(ctx context.Context, key string) (string, bool, error)
	Release(ctx context.Context, key string) error
}

type Config struct {
	// LockTTL bounds how long an in-flight event blocks its duplicates.
	LockTTL time.Duration
}

type Service struct {
	uow       *uow.UoW
	inventory *inventory.Service
	idem      Idempotency
	notifier  notify.Notifier
	cfg       Config
	logger    *slog.Logger
}

type Option func(*Service)

func WithIdempotency(i Idempotency) Option {
	return func(s *Service) { s.idem = i }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(tx repository.Transactor, inv *inventory.Service, cfg Config, opts ...Option) *Service {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}

	s := &Service{
		uow:       uow.New(tx),
		inventory: inv,
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnTicketCreated sells the event's seats and records the live ticket in one
// transaction.
//
// Returns:
//   - *Result: the applied (or replayed) outcome.
//   - error: booking.ErrClassMismatch if a seat is outside the ticket class.
//   - error: booking.ErrEmptySelection if the event names no seats.
//   - error: booking.ErrEventInProgress if the same event is being applied.
//   - error: any inventory seat error, wrapped.
func (s *Service) OnTicketCreated(ctx context.Context, ev TicketEvent) (*Result, error) {
	const op = "service.booking.OnTicketCreated"

	if err := ev.validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	res, err := s.once(ctx, ev, func(ctx context.Context) (*Result, error) {
		var out *Result

		err := s.uow.Do(ctx, func(
			ctx context.Context,
			repos repository.Repositories,
			after func(uow.AfterCommit),
		) error {
			inv, err := s.inventory.AllocateWithin(ctx, repos, after, ev.VoyageID, ev.Seats)
			if err != nil {
				return err
			}

			if err := repos.Tickets().Create(ctx, &domain.Ticket{
				ID:            ev.TicketID,
				VoyageID:      ev.VoyageID,
				UserID:        ev.UserID,
				Class:         ev.Class,
				Seats:         ev.Seats,
				PassengerName: ev.PassengerName,
			}); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return fmt.Errorf("ticket %s:%w", ev.TicketID, ErrTicketExists)
				}
				return err
			}

			out = &Result{EventID: ev.EventID, TicketID: ev.TicketID, VoyageID: ev.VoyageID, SoldCount: inv.SoldCount}

			after(func(ctx context.Context) {
				notify.Emit(ctx, s.notifier, s.logger, ev.UserID, notify.SeatsAllocated, seatsPayload(ev.VoyageID, ev.TicketID, ev.Seats))
			})
			return nil
		})

		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

// OnTicketCancelled frees the seats of a live ticket and deletes it. The seats
// released are the ones stored with the ticket.
//
// Returns:
//   - error: booking.ErrTicketNotFound if the ticket is not live.
//   - error: booking.ErrEventInProgress if the same event is being applied.
func (s *Service) OnTicketCancelled(ctx context.Context, ev TicketEvent) (*Result, error) {
	const op = "service.booking.OnTicketCancelled"

	if ev.TicketID == uuid.Nil {
		return nil, fmt.Errorf("%s:%w: missing ticket id", op, ErrInvalidEvent)
	}

	res, err := s.once(ctx, ev, func(ctx context.Context) (*Result, error) {
		var out *Result

		err := s.uow.Do(ctx, func(
			ctx context.Context,
			repos repository.Repositories,
			after func(uow.AfterCommit),
		) error {
			t, err := repos.Tickets().Get(ctx, ev.TicketID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("ticket %s:%w", ev.TicketID, ErrTicketNotFound)
				}
				return err
			}

			inv, err := s.inventory.ReleaseWithin(ctx, repos, after, t.VoyageID, t.Seats)
			if err != nil {
				return err
			}

			if err := repos.Tickets().Delete(ctx, t.ID); err != nil {
				return err
			}

			out = &Result{EventID: ev.EventID, TicketID: t.ID, VoyageID: t.VoyageID, SoldCount: inv.SoldCount}

			after(func(ctx context.Context) {
				notify.Emit(ctx, s.notifier, s.logger, t.UserID, notify.SeatsReleased, seatsPayload(t.VoyageID, t.ID, t.Seats))
			})
			return nil
		})

		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

// Apply dispatches an event by its type.
func (s *Service) Apply(ctx context.Context, ev TicketEvent) (*Result, error) {
	switch ev.Type {
	case TicketCreated:
		return s.OnTicketCreated(ctx, ev)
	case TicketCancelled:
		return s.OnTicketCancelled(ctx, ev)
	default:
		return nil, fmt.Errorf("service.booking.Apply:%w: type %q", ErrInvalidEvent, ev.Type)
	}
}

// HandleMessage decodes and applies a queued event body.
func (s *Service) HandleMessage(ctx context.Context, body []byte) error {
	ev, err := DecodeEvent(body)
	if err != nil {
		return err
	}
	_, err = s.Apply(ctx, ev)
	return err
}

// once runs fn at most once per event id when an idempotency store is set.
// A completed event returns its stored result with Replayed set.
func (s *Service) once(
	ctx context.Context,
	ev TicketEvent,
	fn func(ctx context.Context) (*Result, error),
) (*Result, error) {
	if s.idem == nil || ev.EventID == "" {
		return fn(ctx)
	}

	key := redisrepo.KeyIdemTicketEvent(ev.VoyageID, ev.EventID)

	if raw, ok, err := s.idem.GetResult(ctx, key); err != nil {
		return nil, err
	} else if ok {
		var res Result
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			return nil, err
		}
		res.Replayed = true
		return &res, nil
	}

	locked, err := s.idem.AcquireLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrEventInProgress
	}

	res, err := fn(ctx)
	if err != nil {
		if rerr := s.idem.Release(ctx, key); rerr != nil {
			s.logger.WarnContext(ctx, "release idempotency lock",
				slog.String("event_id", ev.EventID), slog.Any("error", rerr))
		}
		return nil, err
	}

	b, err := json.Marshal(res)
	if err == nil {
		err = s.idem.SaveResult(ctx, key, string(b))
	}
	if err != nil {
		s.logger.WarnContext(ctx, "save idempotency result",
			slog.String("event_id", ev.EventID), slog.Any("error", err))
	}

	return res, nil
}

func seatsPayload(voyageID int64, ticketID uuid.UUID, seats []domain.SeatRef) map[string]any {
	return map[string]any{
		"voyage_id": voyageID,
		"ticket_id": ticketID,
		"seats":     seats,
	}
}
