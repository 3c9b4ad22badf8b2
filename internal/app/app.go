package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirinyoku/ferry-go/internal/config"
	"github.com/kirinyoku/ferry-go/internal/notify"
	"github.com/kirinyoku/ferry-go/internal/postgres"
	"github.com/kirinyoku/ferry-go/internal/queue"
	"github.com/kirinyoku/ferry-go/internal/redis"
	"github.com/kirinyoku/ferry-go/internal/repository"
	"github.com/kirinyoku/ferry-go/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/ferry-go/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/ferry-go/internal/repository/redis"
	"github.com/kirinyoku/ferry-go/internal/service"
	"github.com/kirinyoku/ferry-go/internal/service/booking"
	"github.com/kirinyoku/ferry-go/internal/service/schedule"
	"github.com/kirinyoku/ferry-go/internal/service/sweep"
	httpgin "github.com/kirinyoku/ferry-go/internal/transport/http/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	services   *service.Services
	httpServer *http.Server
	consumer   *queue.Consumer
	closers    []func()
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	profiles, err := config.LoadProfiles(cfg.VehicleProfilesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicle profiles: %w", err)
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := service.Deps{
		Store:      store,
		Profiles:   profiles,
		Registerer: reg,
		Logger:     logger,
	}
	notifiers := notify.Fanout{notify.NewLogNotifier(logger)}
	routerOpts := httpgin.Options{Gatherer: reg}

	if cfg.Redis.Addr != "" {
		rdb, err := redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		pubsub := redisrepo.NewVoyagesPubSub(rdb)
		deps.Cache = redisrepo.New(rdb)
		deps.PubSub = pubsub
		deps.Idempotency = redisrepo.NewIdempotencyStore(rdb, 24*time.Hour)
		notifiers = append(notifiers, notify.NewPublisherNotifier(redisrepo.NewNotificationPublisher(rdb)))

		routerOpts.Limiter = redisrepo.NewSlidingWindowLimiter(rdb, "http", 120, time.Minute)
		routerOpts.Stream = pubsub
	} else {
		logger.Warn("redis disabled: no cache, rate limiting or event deduplication")
	}

	if cfg.RabbitMQ.URL != "" {
		notifiers = append(notifiers, notify.NewPublisherNotifier(queue.NewPublisher(cfg.RabbitMQ.URL, queue.NotificationsQueue)))
	}
	deps.Notifier = notifiers

	a.services = service.NewServices(deps, service.Config{
		Schedule: schedule.Config{
			HorizonDays: cfg.Schedule.HorizonDays,
			Location:    cfg.Schedule.Location,
		},
		Sweep: sweep.Config{
			Interval: cfg.Sweep.Interval,
			Location: cfg.Schedule.Location,
		},
	})

	if cfg.RabbitMQ.URL != "" {
		a.consumer = queue.NewConsumer(cfg.RabbitMQ.URL, queue.TicketEventsQueue, a.services.Booking.HandleMessage,
			queue.WithRequeue(retryable),
			queue.WithConsumerLogger(logger.With(slog.String("component", "queue"))),
		)
	}

	router := httpgin.NewRouter(a.services, routerOpts, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context) (repository.Transactor, error) {
	if a.cfg.Store == config.StoreMemory {
		a.logger.Warn("using in-memory store: data is lost on exit")

		stations, err := config.LoadStations(a.cfg.StationsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load stations: %w", err)
		}
		store := memory.NewStore()
		for _, s := range stations {
			store.PutStation(s)
		}
		return store, nil
	}

	pool, err := postgres.New(ctx, postgres.Config{DSN: a.cfg.Postgres.DSN()})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	store := postgresrepo.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return store, nil
}

// retryable reports whether a failed ticket event should go back on the queue.
func retryable(err error) bool {
	return errors.Is(err, booking.ErrEventInProgress) ||
		errors.Is(err, repository.ErrConflict) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (a *App) Services() *service.Services { return a.services }

// Close releases database and cache connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.Close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Retirement sweep
	g.Go(func() error {
		return a.services.Sweep.Run(gCtx)
	})

	// Ticket events from the booking system
	if a.consumer != nil {
		g.Go(func() error {
			a.logger.Info("consuming ticket events", "queue", queue.TicketEventsQueue)
			return a.consumer.Run(gCtx)
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
