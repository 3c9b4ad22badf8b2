package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository"
	"github.com/kirinyoku/ferry-go/internal/uow"
)

type regenResult struct {
	deleted   int64
	generated int
	// kept lists stale voyages left in place because seats are sold on them.
	kept []int64
}

// horizon is the default generation window starting at start.
func (s *Service) horizon(start time.Time) repository.DateRange {
	start = domain.DateOf(start)
	return repository.DateRange{From: start, To: start.AddDate(0, 0, s.cfg.HorizonDays)}
}

// window clamps start to today and defaults a zero end to the horizon.
func (s *Service) window(start, end time.Time) (repository.DateRange, error) {
	today := s.today()

	if start.IsZero() || domain.DateOf(start).Before(today) {
		start = today
	}
	rng := s.horizon(start)

	if !end.IsZero() {
		rng.To = domain.DateOf(end)
	}
	if rng.To.Before(rng.From) {
		return rng, fmt.Errorf("%w: %s is before %s",
			ErrInvalidRange, rng.To.Format(time.DateOnly), rng.From.Format(time.DateOnly))
	}

	return rng, nil
}

// Regenerate rebuilds a template's voyages in [start, end]. Unmodified voyages
// without sales that no longer match the template are deleted, then every
// template weekday in the range that has no voyage gets a fresh one with an
// empty inventory. Running it twice generates nothing the second time.
// A start in the past is moved to today; a zero end means start plus the
// generation horizon.
//
// Parameters:
//   - ctx: request-scoped context.
//   - templateID: template to regenerate.
//   - start: first date considered; a start on the template weekday is included.
//   - end: last date considered, inclusive.
//
// Returns:
//   - int: number of voyages created.
//   - error: schedule.ErrTemplateNotFound if the template does not exist.
//   - error: schedule.ErrInvalidRange if end is before start.
func (s *Service) Regenerate(ctx context.Context, templateID int64, start, end time.Time) (int, error) {
	const op = "service.schedule.Regenerate"

	rng, err := s.window(start, end)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	t, err := s.uow.Repos().Templates().Get(ctx, templateID)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, mapTemplateErr(err))
	}

	from, to, err := s.endpoints(ctx, t.Route)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	var generated int

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		repos repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		cur, err := repos.Templates().Get(ctx, templateID)
		if err != nil {
			return mapTemplateErr(err)
		}
		if cur.Route != t.Route {
			return fmt.Errorf("template %d route changed concurrently:%w", templateID, repository.ErrConflict)
		}

		res, err := s.regenerateWithin(ctx, repos, after, cur, from, to, rng)
		if err != nil {
			return err
		}

		generated = res.generated
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return generated, nil
}

// UpdateTemplateAndFutureVoyages applies patch to a template and regenerates
// its voyages in [start, end] in the same transaction. Operator-modified
// voyages keep their own fields.
//
// Returns:
//   - *domain.ScheduleTemplate: the updated template.
//   - int: number of voyages created.
//   - error: schedule.ErrTemplateNotFound, schedule.ErrInvalidTemplate or
//     schedule.ErrInvalidRange.
func (s *Service) UpdateTemplateAndFutureVoyages(
	ctx context.Context,
	templateID int64,
	patch domain.TemplatePatch,
	start, end time.Time,
) (*domain.ScheduleTemplate, int, error) {
	const op = "service.schedule.UpdateTemplateAndFutureVoyages"

	rng, err := s.window(start, end)
	if err != nil {
		return nil, 0, fmt.Errorf("%s:%w", op, err)
	}

	t, err := s.uow.Repos().Templates().Get(ctx, templateID)
	if err != nil {
		return nil, 0, fmt.Errorf("%s:%w", op, mapTemplateErr(err))
	}

	patch.Apply(t)
	if err := s.validateTemplate(t); err != nil {
		return nil, 0, fmt.Errorf("%s:%w", op, err)
	}

	from, to, err := s.endpoints(ctx, t.Route)
	if err != nil {
		return nil, 0, fmt.Errorf("%s:%w", op, err)
	}

	var (
		out       *domain.ScheduleTemplate
		generated int
	)

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		repos repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		cur, err := repos.Templates().Get(ctx, templateID)
		if err != nil {
			return mapTemplateErr(err)
		}

		patch.Apply(cur)
		if cur.Route != t.Route {
			return fmt.Errorf("template %d route changed concurrently:%w", templateID, repository.ErrConflict)
		}
		if err := repos.Templates().Update(ctx, cur); err != nil {
			return err
		}

		res, err := s.regenerateWithin(ctx, repos, after, cur, from, to, rng)
		if err != nil {
			return err
		}

		out = cur
		generated = res.generated
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%s:%w", op, err)
	}

	return out, generated, nil
}

func (s *Service) regenerateWithin(
	ctx context.Context,
	repos repository.Repositories,
	after func(uow.AfterCommit),
	t *domain.ScheduleTemplate,
	from, to domain.Endpoint,
	rng repository.DateRange,
) (regenResult, error) {
	var res regenResult

	existing, err := repos.Voyages().ListByTemplate(ctx, t.ID, rng)
	if err != nil {
		return res, err
	}

	var stale []domain.Voyage
	for _, v := range existing {
		if v.IsModified() || v.Status == domain.VoyageRetired || (t.IsActive && matchesTemplate(v, t, from, to)) {
			continue
		}

		inv, err := repos.Inventories().Get(ctx, v.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return res, err
		}
		if inv != nil && inv.SoldCount > 0 {
			res.kept = append(res.kept, v.ID)
			continue
		}

		if err := repos.Voyages().Delete(ctx, v.ID); err != nil {
			return res, err
		}
		stale = append(stale, v)
		res.deleted++
	}

	if t.IsActive {
		for d := domain.NextWeekday(rng.From, t.DayOfWeek); !d.After(rng.To); d = d.AddDate(0, 0, 7) {
			exists, err := repos.Voyages().ExistsForTemplateDate(ctx, t.ID, d)
			if err != nil {
				return res, err
			}
			if exists {
				continue
			}

			tid := t.ID
			id, err := repos.Voyages().Create(ctx, &domain.Voyage{
				TemplateID:    &tid,
				From:          from,
				To:            to,
				DepartureDate: d,
				DepartureTime: t.DepartureTime,
				ArrivalTime:   t.ArrivalTime,
				VehicleType:   t.VehicleType,
				Capacity:      t.Capacity,
				Status:        domain.VoyageActive,
				Provenance:    domain.ProvenanceTemplate,
			})
			if err != nil {
				if errors.Is(err, repository.ErrConflict) {
					continue
				}
				return res, err
			}

			if _, err := s.inventory.InitializeWithin(ctx, repos, id, t.VehicleType); err != nil {
				return res, err
			}

			res.generated++
		}
	}

	after(func(ctx context.Context) {
		s.metrics.record(int64(res.generated), res.deleted, 0)
		for _, v := range stale {
			s.inventory.Announce(ctx, v.ID)
		}
		s.logger.InfoContext(ctx, "template regenerated",
			slog.Int64("template_id", t.ID),
			slog.String("from", rng.From.Format(time.DateOnly)),
			slog.String("to", rng.To.Format(time.DateOnly)),
			slog.Int64("deleted", res.deleted),
			slog.Int("generated", res.generated),
		)
		if len(res.kept) > 0 {
			s.logger.WarnContext(ctx, "stale voyages kept: seats already sold",
				slog.Int64("template_id", t.ID),
				slog.Int("count", len(res.kept)),
				slog.Any("voyage_ids", res.kept),
			)
		}
	})

	return res, nil
}

// CancelFutureVoyagesForTemplate cancels the template's active unmodified
// voyages dated on or after from. A from in the past is moved to today.
//
// Returns:
//   - int64: number of voyages cancelled.
//   - error: schedule.ErrTemplateNotFound if the template does not exist.
func (s *Service) CancelFutureVoyagesForTemplate(ctx context.Context, templateID int64, from time.Time) (int64, error) {
	const op = "service.schedule.CancelFutureVoyagesForTemplate"

	rng := s.openFrom(from)

	var cancelled int64

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		repos repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		if _, err := repos.Templates().Get(ctx, templateID); err != nil {
			return mapTemplateErr(err)
		}

		n, err := s.cancelWithin(ctx, repos, after, templateID, rng)
		if err != nil {
			return err
		}

		cancelled = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return cancelled, nil
}

// DeleteUnmodifiedVoyagesForTemplate deletes the template's unmodified
// voyages without sales dated on or after from.
//
// Returns:
//   - int64: number of voyages deleted.
//   - error: schedule.ErrTemplateNotFound if the template does not exist.
func (s *Service) DeleteUnmodifiedVoyagesForTemplate(ctx context.Context, templateID int64, from time.Time) (int64, error) {
	const op = "service.schedule.DeleteUnmodifiedVoyagesForTemplate"

	rng := s.openFrom(from)

	var deleted int64

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		repos repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		if _, err := repos.Templates().Get(ctx, templateID); err != nil {
			return mapTemplateErr(err)
		}

		stale, err := repos.Voyages().ListByTemplate(ctx, templateID, rng)
		if err != nil {
			return err
		}

		n, err := repos.Voyages().DeleteUnmodifiedByTemplate(ctx, templateID, rng)
		if err != nil {
			return err
		}

		deleted = n
		after(func(ctx context.Context) {
			s.metrics.record(0, n, 0)
			for _, v := range stale {
				s.inventory.Announce(ctx, v.ID)
			}
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return deleted, nil
}

func (s *Service) cancelWithin(
	ctx context.Context,
	repos repository.Repositories,
	after func(uow.AfterCommit),
	templateID int64,
	rng repository.DateRange,
) (int64, error) {
	affected, err := repos.Voyages().ListByTemplate(ctx, templateID, rng)
	if err != nil {
		return 0, err
	}

	n, err := repos.Voyages().CancelUnmodifiedByTemplate(ctx, templateID, rng)
	if err != nil {
		return 0, err
	}

	after(func(ctx context.Context) {
		s.metrics.record(0, 0, n)
		for _, v := range affected {
			if !v.IsModified() {
				s.inventory.Announce(ctx, v.ID)
			}
		}
	})

	return n, nil
}

func (s *Service) openFrom(from time.Time) repository.DateRange {
	today := s.today()
	if from.IsZero() || domain.DateOf(from).Before(today) {
		return repository.DateRange{From: today}
	}
	return repository.DateRange{From: domain.DateOf(from)}
}

// matchesTemplate reports whether an unmodified voyage already looks exactly
// like the one the template would generate for its date.
func matchesTemplate(v domain.Voyage, t *domain.ScheduleTemplate, from, to domain.Endpoint) bool {
	return v.Status == domain.VoyageActive &&
		v.DepartureDate.Weekday() == t.DayOfWeek &&
		v.From == from &&
		v.To == to &&
		v.DepartureTime == t.DepartureTime &&
		v.ArrivalTime == t.ArrivalTime &&
		v.VehicleType == t.VehicleType &&
		v.Capacity == t.Capacity
}
