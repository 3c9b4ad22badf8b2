// Package inventory keeps the per-voyage seat bitmaps. Every mutation is a
// single read-modify-write of the inventory row inside one transaction.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
	"github.com/kirinyoku/ferry-go/internal/uow"
	"github.com/prometheus/client_golang/prometheus"
)

// Cache drops cached read models of a voyage.
type Cache interface {
	InvalidateVoyage(ctx context.Context, voyageID int64) error
}

// Publisher announces that a voyage's seats changed.
type Publisher interface {
	PublishVoyageChanged(ctx context.Context, voyageID int64) error
}

type mutation int

const (
	allocate mutation = iota
	release
)

type Service struct {
	uow      *uow.UoW
	profiles *seatmap.Profiles
	cache    Cache
	pubsub   Publisher
	metrics  *metrics
	logger   *slog.Logger
}

type Option func(*Service)

func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pubsub = p }
}

func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Service) { s.metrics = initMetrics(reg) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(tx repository.Transactor, profiles *seatmap.Profiles, opts ...Option) *Service {
	s := &Service{
		uow:      uow.New(tx),
		profiles: profiles,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Profiles returns the vehicle capacity table the service validates against.
func (s *Service) Profiles() *seatmap.Profiles {
	return s.profiles
}

// Initialize creates an all-free inventory for a voyage. It is idempotent: an
// existing inventory is returned unchanged.
//
// Returns:
//   - error: inventory.ErrVoyageNotFound if the voyage does not exist.
//   - error: seatmap.ErrUnknownVehicleType if no profile matches vehicle.
func (s *Service) Initialize(
	ctx context.Context,
	voyageID int64,
	vehicle seatmap.VehicleType,
) (*domain.SeatInventory, error) {
	const op = "service.inventory.Initialize"

	var out *domain.SeatInventory

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		repos repository.Repositories,
		_ func(uow.AfterCommit),
	) error {
		inv, err := s.InitializeWithin(ctx, repos, voyageID, vehicle)
		if err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// InitializeWithin is Initialize on repositories of a caller's transaction.
func (s *Service) InitializeWithin(
	ctx context.Context,
	repos repository.Repositories,
	voyageID int64,
	vehicle seatmap.VehicleType,
) (*domain.SeatInventory, error) {
	const op = "service.inventory.InitializeWithin"

	if _, err := s.profiles.Lookup(vehicle); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	inv, _, err := repos.Inventories().Create(ctx, &domain.SeatInventory{
		VoyageID:    voyageID,
		VehicleType: vehicle,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrVoyageNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return inv, nil
}

// Allocate marks one seat as sold.
//
// Returns:
//   - error: inventory.ErrSeatOutOfRange if index is past the partition capacity.
//   - error: inventory.ErrSeatAlreadyTaken if the seat is sold.
//   - error: inventory.ErrVoyageNotFound if the voyage has no inventory.
//   - error: inventory.ErrVoyageNotBookable if the voyage is cancelled or retired.
func (s *Service) Allocate(
	ctx context.Context,
	voyageID int64,
	part seatmap.Partition,
	index int,
) (*domain.SeatInventory, error) {
	const op = "service.inventory.Allocate"

	inv, err := s.mutate(ctx, voyageID, []domain.SeatRef{{Partition: part, Index: index}}, allocate)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return inv, nil
}

// Release frees one sold seat.
//
// Returns:
//   - error: inventory.ErrSeatOutOfRange if index is past the partition capacity.
//   - error: inventory.ErrSeatNotTaken if the seat is free.
//   - error: inventory.ErrVoyageNotFound if the voyage has no inventory.
func (s *Service) Release(
	ctx context.Context,
	voyageID int64,
	part seatmap.Partition,
	index int,
) (*domain.SeatInventory, error) {
	const op = "service.inventory.Release"

	inv, err := s.mutate(ctx, voyageID, []domain.SeatRef{{Partition: part, Index: index}}, release)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return inv, nil
}

// BulkAllocate sells all seats or none.
func (s *Service) BulkAllocate(
	ctx context.Context,
	voyageID int64,
	seats []domain.SeatRef,
) (*domain.SeatInventory, error) {
	const op = "service.inventory.BulkAllocate"

	inv, err := s.mutate(ctx, voyageID, seats, allocate)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return inv, nil
}

// BulkRelease frees all seats or none.
func (s *Service) BulkRelease(
	ctx context.Context,
	voyageID int64,
	seats []domain.SeatRef,
) (*domain.SeatInventory, error) {
	const op = "service.inventory.BulkRelease"

	inv, err := s.mutate(ctx, voyageID, seats, release)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return inv, nil
}

func (s *Service) mutate(
	ctx context.Context,
	voyageID int64,
	seats []domain.SeatRef,
	kind mutation,
) (*domain.SeatInventory, error) {
	var out *domain.SeatInventory

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		repos repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		var (
			inv *domain.SeatInventory
			err error
		)
		if kind == allocate {
			inv, err = s.AllocateWithin(ctx, repos, after, voyageID, seats)
		} else {
			inv, err = s.ReleaseWithin(ctx, repos, after, voyageID, seats)
		}
		if err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// AllocateWithin sells seats using the repositories of a caller's
// transaction. Cache invalidation and the change event are registered as
// after-commit hooks.
func (s *Service) AllocateWithin(
	ctx context.Context,
	repos repository.Repositories,
	after func(uow.AfterCommit),
	voyageID int64,
	seats []domain.SeatRef,
) (*domain.SeatInventory, error) {
	return s.apply(ctx, repos, after, voyageID, seats, allocate)
}

// ReleaseWithin frees seats using the repositories of a caller's transaction.
func (s *Service) ReleaseWithin(
	ctx context.Context,
	repos repository.Repositories,
	after func(uow.AfterCommit),
	voyageID int64,
	seats []domain.SeatRef,
) (*domain.SeatInventory, error) {
	return s.apply(ctx, repos, after, voyageID, seats, release)
}

func (s *Service) apply(
	ctx context.Context,
	repos repository.Repositories,
	after func(uow.AfterCommit),
	voyageID int64,
	seats []domain.SeatRef,
	kind mutation,
) (*domain.SeatInventory, error) {
	const op = "service.inventory.apply"

	if len(seats) == 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrEmptySelection)
	}

	v, err := repos.Voyages().Get(ctx, voyageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.reject("voyage_not_found")
			return nil, fmt.Errorf("%s:%w", op, ErrVoyageNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if kind == allocate && v.Status != domain.VoyageActive {
		s.metrics.reject("not_bookable")
		return nil, fmt.Errorf("%s: voyage %d is %s:%w", op, voyageID, v.Status, ErrVoyageNotBookable)
	}

	inv, err := repos.Inventories().GetForUpdate(ctx, voyageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.reject("voyage_not_found")
			return nil, fmt.Errorf("%s:%w", op, ErrVoyageNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	profile, err := s.profiles.Lookup(inv.VehicleType)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	next, err := applySeats(profile, inv.Seats, seats, kind)
	if err != nil {
		var se *SeatError
		if errors.As(err, &se) {
			s.metrics.reject(reason(se.Err))
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	inv.Seats = next
	if kind == allocate {
		inv.SoldCount += len(seats)
	} else {
		inv.SoldCount -= len(seats)
	}

	if err := repos.Inventories().Save(ctx, inv); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	after(func(ctx context.Context) {
		s.metrics.observe(kind, seats)
		s.announce(ctx, voyageID)
	})

	return inv, nil
}

// applySeats returns bs with every seat flipped, or the first seat that
// cannot be flipped. A seat repeated within one request fails on its second
// occurrence.
func applySeats(
	profile seatmap.Profile,
	bs seatmap.Bitmaps,
	seats []domain.SeatRef,
	kind mutation,
) (seatmap.Bitmaps, error) {
	for _, seat := range seats {
		if err := profile.Check(seat.Partition, seat.Index); err != nil {
			return bs, &SeatError{Seat: seat, Err: ErrSeatOutOfRange}
		}

		b := bs[seat.Partition]
		switch kind {
		case allocate:
			if b.Has(seat.Index) {
				return bs, &SeatError{Seat: seat, Err: ErrSeatAlreadyTaken}
			}
			bs[seat.Partition] = b.Set(seat.Index)
		case release:
			if !b.Has(seat.Index) {
				return bs, &SeatError{Seat: seat, Err: ErrSeatNotTaken}
			}
			bs[seat.Partition] = b.Clear(seat.Index)
		}
	}

	return bs, nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrSeatOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrSeatAlreadyTaken):
		return "already_taken"
	case errors.Is(err, ErrSeatNotTaken):
		return "not_taken"
	default:
		return "other"
	}
}

func (s *Service) announce(ctx context.Context, voyageID int64) {
	if s.cache != nil {
		if err := s.cache.InvalidateVoyage(ctx, voyageID); err != nil {
			s.logger.WarnContext(ctx, "invalidate voyage cache",
				slog.Int64("voyage_id", voyageID), slog.Any("error", err))
		}
	}
	if s.pubsub != nil {
		if err := s.pubsub.PublishVoyageChanged(ctx, voyageID); err != nil {
			s.logger.WarnContext(ctx, "publish voyage changed",
				slog.Int64("voyage_id", voyageID), slog.Any("error", err))
		}
	}
}

// Announce invalidates cached read models of a voyage and publishes a change
// event. Other services call it after they alter a voyage.
func (s *Service) Announce(ctx context.Context, voyageID int64) {
	s.announce(ctx, voyageID)
}

// GetAvailability decodes the voyage's bitmaps. It never mutates.
//
// Returns:
//   - error: inventory.ErrVoyageNotFound if the voyage has no inventory.
func (s *Service) GetAvailability(ctx context.Context, voyageID int64) (seatmap.View, error) {
	const op = "service.inventory.GetAvailability"

	inv, err := s.uow.Repos().Inventories().Get(ctx, voyageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return seatmap.View{}, fmt.Errorf("%s:%w", op, ErrVoyageNotFound)
		}
		return seatmap.View{}, fmt.Errorf("%s:%w", op, err)
	}

	profile, err := s.profiles.Lookup(inv.VehicleType)
	if err != nil {
		return seatmap.View{}, fmt.Errorf("%s:%w", op, err)
	}

	view, err := seatmap.Decode(inv.Seats, profile)
	if err != nil {
		return seatmap.View{}, fmt.Errorf("%s:%w", op, err)
	}

	return view, nil
}
