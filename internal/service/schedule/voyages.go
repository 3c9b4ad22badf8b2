package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
	"github.com/kirinyoku/ferry-go/internal/uow"
)

// VoyageInput describes an ad hoc sailing outside any template.
type VoyageInput struct {
	Route         domain.Route
	DepartureDate time.Time
	DepartureTime domain.TimeOfDay
	ArrivalTime   domain.TimeOfDay
	VehicleType   seatmap.VehicleType
	Capacity      domain.ClassCapacity
}

// CreateVoyage adds a one-off voyage. It is operator-owned from the start, so
// template regeneration never touches it.
//
// Returns:
//   - error: schedule.ErrInvalidTemplate if the sailing fields are invalid.
//   - error: schedule.ErrInvalidRange if the date is before today.
func (s *Service) CreateVoyage(ctx context.Context, in VoyageInput) (*domain.Voyage, error) {
	const op = "service.schedule.CreateVoyage"

	if err := s.validateSailing(in.Route, in.DepartureTime, in.ArrivalTime, in.VehicleType, in.Capacity); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	date := domain.DateOf(in.DepartureDate)
	if in.DepartureDate.IsZero() || date.Before(s.today()) {
		return nil, fmt.Errorf("%s:%w: departure date %s is in the past", op, ErrInvalidRange, date.Format(time.DateOnly))
	}

	from, to, err := s.endpoints(ctx, in.Route)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var out *domain.Voyage

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		repos repository.Repositories,
		_ func(uow.AfterCommit),
	) error {
		id, err := repos.Voyages().Create(ctx, &domain.Voyage{
			From:          from,
			To:            to,
			DepartureDate: date,
			DepartureTime: in.DepartureTime,
			ArrivalTime:   in.ArrivalTime,
			VehicleType:   in.VehicleType,
			Capacity:      in.Capacity,
			Status:        domain.VoyageActive,
			Provenance:    domain.ProvenanceOperator,
		})
		if err != nil {
			return err
		}

		if _, err := s.inventory.InitializeWithin(ctx, repos, id, in.VehicleType); err != nil {
			return err
		}

		v, err := repos.Voyages().Get(ctx, id)
		if err != nil {
			return err
		}

		out = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// UpdateVoyage edits one voyage and marks it operator-modified. The vehicle
// can only change while no seat is sold, since seat indexes depend on it.
//
// Returns:
//   - error: schedule.ErrVoyageNotFound if the voyage does not exist.
//   - error: schedule.ErrVoyageClosed if the voyage is cancelled or retired.
//   - error: schedule.ErrVoyageHasSales if the vehicle changes after sales.
func (s *Service) UpdateVoyage(ctx context.Context, id int64, patch domain.VoyagePatch) (*domain.Voyage, error) {
	const op = "service.schedule.UpdateVoyage"

	if patch.DepartureDate != nil && domain.DateOf(*patch.DepartureDate).Before(s.today()) {
		return nil, fmt.Errorf("%s:%w: departure date in the past", op, ErrInvalidRange)
	}

	var out *domain.Voyage

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		repos repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		v, err := repos.Voyages().Get(ctx, id)
		if err != nil {
			return mapVoyageErr(err)
		}
		if v.Status != domain.VoyageActive {
			return fmt.Errorf("voyage %d is %s:%w", id, v.Status, ErrVoyageClosed)
		}

		oldVehicle := v.VehicleType
		patch.Apply(v)

		route := domain.Route{FromStationID: v.From.StationID, ToStationID: v.To.StationID}
		if err := s.validateSailing(route, v.DepartureTime, v.ArrivalTime, v.VehicleType, v.Capacity); err != nil {
			return err
		}

		if v.VehicleType != oldVehicle {
			inv, err := repos.Inventories().GetForUpdate(ctx, id)
			if err != nil {
				return mapVoyageErr(err)
			}
			if inv.SoldCount > 0 {
				return fmt.Errorf("voyage %d has %d sold seats:%w", id, inv.SoldCount, ErrVoyageHasSales)
			}
			if err := repos.Inventories().Delete(ctx, id); err != nil {
				return err
			}
			if _, err := s.inventory.InitializeWithin(ctx, repos, id, v.VehicleType); err != nil {
				return err
			}
		}

		v.Provenance = domain.ProvenanceOperator
		if err := repos.Voyages().Update(ctx, v); err != nil {
			return err
		}

		out = v
		after(func(ctx context.Context) {
			s.inventory.Announce(ctx, id)
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// CancelVoyage cancels a single voyage and marks it operator-modified, so a
// later regeneration does not bring it back. Cancelling twice is a no-op.
//
// Returns:
//   - error: schedule.ErrVoyageNotFound if the voyage does not exist.
//   - error: schedule.ErrVoyageClosed if the voyage is already retired.
func (s *Service) CancelVoyage(ctx context.Context, id int64) error {
	const op = "service.schedule.CancelVoyage"

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		repos repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		v, err := repos.Voyages().Get(ctx, id)
		if err != nil {
			return mapVoyageErr(err)
		}

		switch v.Status {
		case domain.VoyageCancelled:
			return nil
		case domain.VoyageRetired:
			return fmt.Errorf("voyage %d is retired:%w", id, ErrVoyageClosed)
		}

		v.Status = domain.VoyageCancelled
		v.Provenance = domain.ProvenanceOperator
		if err := repos.Voyages().Update(ctx, v); err != nil {
			return err
		}

		after(func(ctx context.Context) {
			s.metrics.record(0, 0, 1)
			s.inventory.Announce(ctx, id)
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// CancelVoyagesByRoute cancels every active voyage on a route dated on or
// after from, whatever its provenance.
func (s *Service) CancelVoyagesByRoute(ctx context.Context, route domain.Route, from time.Time) (int64, error) {
	const op = "service.schedule.CancelVoyagesByRoute"

	if route.FromStationID <= 0 || route.ToStationID <= 0 {
		return 0, fmt.Errorf("%s:%w: missing station", op, ErrInvalidTemplate)
	}

	rng := s.openFrom(from)

	var cancelled int64

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		repos repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		n, err := repos.Voyages().CancelByRoute(ctx, route, rng)
		if err != nil {
			return err
		}

		cancelled = n
		after(func(ctx context.Context) {
			s.metrics.record(0, 0, n)
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return cancelled, nil
}

func mapVoyageErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrVoyageNotFound
	}
	return err
}
