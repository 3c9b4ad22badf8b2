package service

import (
	"log/slog"
	"time"

	"github.com/kirinyoku/ferry-go/internal/notify"
	"github.com/kirinyoku/ferry-go/internal/repository"
	redisrepo "github.com/kirinyoku/ferry-go/internal/repository/redis"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
	"github.com/kirinyoku/ferry-go/internal/service/booking"
	"github.com/kirinyoku/ferry-go/internal/service/inventory"
	"github.com/kirinyoku/ferry-go/internal/service/query"
	"github.com/kirinyoku/ferry-go/internal/service/schedule"
	"github.com/kirinyoku/ferry-go/internal/service/sweep"
	"github.com/kirinyoku/ferry-go/internal/station"
	"github.com/prometheus/client_golang/prometheus"
)

type Services struct {
	Inventory *inventory.Service
	Schedule  *schedule.Service
	Sweep     *sweep.Sweeper
	Booking   *booking.Service
	Query     *query.Service
}

type Config struct {
	Schedule schedule.Config
	Sweep    sweep.Config
	Booking  booking.Config
	Query    query.Config
}

// Deps are the adapters services are built on. Every redis adapter and the
// notifier may be nil.
type Deps struct {
	Store       repository.Transactor
	Profiles    *seatmap.Profiles
	Cache       *redisrepo.Cache
	PubSub      *redisrepo.VoyagesPubSub
	Idempotency *redisrepo.IdempotencyStore
	Notifier    notify.Notifier
	Registerer  prometheus.Registerer
	Clock       func() time.Time
	Logger      *slog.Logger
}

func NewServices(deps Deps, cfg Config) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	invOpts := []inventory.Option{
		inventory.WithMetrics(deps.Registerer),
		inventory.WithLogger(logger.With(slog.String("component", "inventory"))),
	}
	if deps.Cache != nil {
		invOpts = append(invOpts, inventory.WithCache(deps.Cache))
	}
	if deps.PubSub != nil {
		invOpts = append(invOpts, inventory.WithPublisher(deps.PubSub))
	}
	inv := inventory.New(deps.Store, deps.Profiles, invOpts...)

	stations := station.NewDirectory(deps.Store.Stations(), deps.Cache, 0)

	sched := schedule.New(deps.Store, inv, stations, cfg.Schedule,
		schedule.WithClock(clock),
		schedule.WithMetrics(deps.Registerer),
		schedule.WithLogger(logger.With(slog.String("component", "schedule"))),
	)

	sweeper := sweep.New(deps.Store, cfg.Sweep,
		sweep.WithNotifier(deps.Notifier),
		sweep.WithAnnouncer(inv),
		sweep.WithClock(clock),
		sweep.WithMetrics(deps.Registerer),
		sweep.WithLogger(logger.With(slog.String("component", "sweep"))),
	)

	bookingOpts := []booking.Option{
		booking.WithNotifier(deps.Notifier),
		booking.WithLogger(logger.With(slog.String("component", "booking"))),
	}
	if deps.Idempotency != nil {
		bookingOpts = append(bookingOpts, booking.WithIdempotency(deps.Idempotency))
	}

	return &Services{
		Inventory: inv,
		Schedule:  sched,
		Sweep:     sweeper,
		Booking:   booking.New(deps.Store, inv, cfg.Booking, bookingOpts...),
		Query:     query.New(deps.Store, deps.Profiles, deps.Cache, cfg.Query),
	}
}
