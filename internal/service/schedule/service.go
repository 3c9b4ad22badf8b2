// Package schedule owns recurring schedule templates and the dated voyages
// generated from them.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
	"github.com/kirinyoku/ferry-go/internal/service/inventory"
	"github.com/kirinyoku/ferry-go/internal/station"
	"github.com/kirinyoku/ferry-go/internal/uow"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultHorizonDays = 56

type Config struct {
	// HorizonDays is how far ahead voyages are generated when no end date is given.
	HorizonDays int
	// Location is the time zone that decides what "today" is.
	Location *time.Location
}

type Service struct {
	uow       *uow.UoW
	inventory *inventory.Service
	stations  station.Lookup
	cfg       Config
	now       func() time.Time
	metrics   *metrics
	logger    *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Service) { s.metrics = initMetrics(reg) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(
	tx repository.Transactor,
	inv *inventory.Service,
	stations station.Lookup,
	cfg Config,
	opts ...Option,
) *Service {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = DefaultHorizonDays
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &Service{
		uow:       uow.New(tx),
		inventory: inv,
		stations:  stations,
		cfg:       cfg,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) today() time.Time {
	return domain.DateOf(s.now().In(s.cfg.Location))
}

// CreateTemplate stores a new template and, when it is active, generates its
// voyages from today over the configured horizon.
//
// Returns:
//   - *domain.ScheduleTemplate: the stored template.
//   - int: number of voyages generated.
//   - error: schedule.ErrInvalidTemplate if the template fails validation.
func (s *Service) CreateTemplate(
	ctx context.Context,
	t domain.ScheduleTemplate,
) (*domain.ScheduleTemplate, int, error) {
	const op = "service.schedule.CreateTemplate"

	if err := s.validateTemplate(&t); err != nil {
		return nil, 0, fmt.Errorf("%s:%w", op, err)
	}

	from, to, err := s.endpoints(ctx, t.Route)
	if err != nil {
		return nil, 0, fmt.Errorf("%s:%w", op, err)
	}

	rng := s.horizon(s.today())

	var (
		out       *domain.ScheduleTemplate
		generated int
	)

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		repos repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		id, err := repos.Templates().Create(ctx, &t)
		if err != nil {
			return err
		}

		stored, err := repos.Templates().Get(ctx, id)
		if err != nil {
			return err
		}

		res, err := s.regenerateWithin(ctx, repos, after, stored, from, to, rng)
		if err != nil {
			return err
		}

		out = stored
		generated = res.generated
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%s:%w", op, err)
	}

	return out, generated, nil
}

func (s *Service) GetTemplate(ctx context.Context, id int64) (*domain.ScheduleTemplate, error) {
	const op = "service.schedule.GetTemplate"

	t, err := s.uow.Repos().Templates().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapTemplateErr(err))
	}

	return t, nil
}

func (s *Service) ListTemplates(ctx context.Context, activeOnly bool) ([]domain.ScheduleTemplate, error) {
	const op = "service.schedule.ListTemplates"

	out, err := s.uow.Repos().Templates().List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// DeactivateTemplate stops generation for a template and cancels its future
// unmodified voyages.
//
// Returns:
//   - int64: number of voyages cancelled.
//   - error: schedule.ErrTemplateNotFound if the template does not exist.
func (s *Service) DeactivateTemplate(ctx context.Context, id int64) (int64, error) {
	const op = "service.schedule.DeactivateTemplate"

	rng := repository.DateRange{From: s.today()}

	var cancelled int64

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		repos repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		t, err := repos.Templates().Get(ctx, id)
		if err != nil {
			return mapTemplateErr(err)
		}

		if t.IsActive {
			t.IsActive = false
			if err := repos.Templates().Update(ctx, t); err != nil {
				return err
			}
		}

		n, err := s.cancelWithin(ctx, repos, after, id, rng)
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

// CountVoyagesByTemplate reports how many voyages of a template are in each
// state, and how many were edited by an operator.
func (s *Service) CountVoyagesByTemplate(ctx context.Context, id int64) (domain.TemplateVoyageCounts, error) {
	const op = "service.schedule.CountVoyagesByTemplate"

	repos := s.uow.Repos()
	if _, err := repos.Templates().Get(ctx, id); err != nil {
		return domain.TemplateVoyageCounts{}, fmt.Errorf("%s:%w", op, mapTemplateErr(err))
	}

	c, err := repos.Voyages().CountByTemplate(ctx, id)
	if err != nil {
		return domain.TemplateVoyageCounts{}, fmt.Errorf("%s:%w", op, err)
	}

	return c, nil
}

// validateTemplate checks the fields a generated voyage copies.
func (s *Service) validateTemplate(t *domain.ScheduleTemplate) error {
	if t.DayOfWeek < time.Sunday || t.DayOfWeek > time.Saturday {
		return fmt.Errorf("%w: day of week %d", ErrInvalidTemplate, t.DayOfWeek)
	}
	return s.validateSailing(t.Route, t.DepartureTime, t.ArrivalTime, t.VehicleType, t.Capacity)
}

func (s *Service) validateSailing(
	route domain.Route,
	dep, arr domain.TimeOfDay,
	vehicle seatmap.VehicleType,
	capacity domain.ClassCapacity,
) error {
	if route.FromStationID <= 0 || route.ToStationID <= 0 {
		return fmt.Errorf("%w: missing station", ErrInvalidTemplate)
	}
	if route.FromStationID == route.ToStationID {
		return fmt.Errorf("%w: route starts and ends at station %d", ErrInvalidTemplate, route.FromStationID)
	}
	if !dep.Valid() || !arr.Valid() {
		return fmt.Errorf("%w: time of day out of range", ErrInvalidTemplate)
	}

	profile, err := s.inventory.Profiles().Lookup(vehicle)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}

	for _, c := range []seatmap.Class{seatmap.Promo, seatmap.Economy, seatmap.Business} {
		n := capacity.Of(c)
		if n < 0 || n > profile.ClassCapacity(c) {
			return fmt.Errorf("%w: %s capacity %d exceeds %s vessel (%d)",
				ErrInvalidTemplate, c, n, vehicle, profile.ClassCapacity(c))
		}
	}

	return nil
}

func (s *Service) endpoints(ctx context.Context, route domain.Route) (domain.Endpoint, domain.Endpoint, error) {
	from, to, err := station.Endpoints(ctx, s.stations, route)
	if err != nil {
		if errors.Is(err, station.ErrStationNotFound) {
			return from, to, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
		}
		return from, to, err
	}
	return from, to, nil
}

func mapTemplateErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTemplateNotFound
	}
	return err
}
