// Package sweep retires departed voyages and moves their tickets into the
// archive, one ticket per transaction.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/notify"
	"github.com/kirinyoku/ferry-go/internal/repository"
	"github.com/kirinyoku/ferry-go/internal/uow"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultInterval = 5 * time.Minute

var (
	ErrArchiveWriteFailed = errors.New("archive write failed")

	errAlreadyMigrated = errors.New("ticket already migrated")
)

// Announcer is told about voyages whose state the sweep changed.
type Announcer interface {
	Announce(ctx context.Context, voyageID int64)
}

type Config struct {
	Interval time.Duration
	// Location is the time zone departure dates and times are expressed in.
	Location *time.Location
}

// Stats summarizes one sweep pass.
type Stats struct {
	VoyagesScanned  int `json:"voyages_scanned"`
	VoyagesRetired  int `json:"voyages_retired"`
	TicketsArchived int `json:"tickets_archived"`
	Failures        int `json:"failures"`
}

type Sweeper struct {
	uow       *uow.UoW
	notifier  notify.Notifier
	announcer Announcer
	cfg       Config
	now       func() time.Time
	metrics   *metrics
	logger    *slog.Logger
}

type Option func(*Sweeper)

func WithNotifier(n notify.Notifier) Option {
	return func(s *Sweeper) { s.notifier = n }
}

func WithAnnouncer(a Announcer) Option {
	return func(s *Sweeper) { s.announcer = a }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Sweeper) { s.metrics = initMetrics(reg) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

func New(tx repository.Transactor, cfg Config, opts ...Option) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &Sweeper{
		uow:    uow.New(tx),
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run sweeps once immediately and then on every interval tick until ctx is
// done. Failed passes are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	st, err := s.SweepOnce(ctx, s.now())
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.ErrorContext(ctx, "sweep failed", slog.Any("error", err))
		return
	}
	if st.VoyagesRetired > 0 || st.TicketsArchived > 0 || st.Failures > 0 {
		s.logger.InfoContext(ctx, "sweep finished",
			slog.Int("voyages_scanned", st.VoyagesScanned),
			slog.Int("voyages_retired", st.VoyagesRetired),
			slog.Int("tickets_archived", st.TicketsArchived),
			slog.Int("failures", st.Failures),
		)
	}
}

// SweepNow runs one pass at the sweeper's current time.
func (s *Sweeper) SweepNow(ctx context.Context) (Stats, error) {
	return s.SweepOnce(ctx, s.now())
}

// SweepOnce retires every voyage that has departed as of now. A failure on one
// voyage is logged and counted; the pass moves on to the next voyage.
//
// Returns:
//   - Stats: what the pass did, including partial progress on error.
//   - error: a candidate listing failure or ctx cancellation.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (Stats, error) {
	const op = "service.sweep.SweepOnce"

	start := time.Now()
	local := now.In(s.cfg.Location)

	var st Stats
	defer func() {
		s.metrics.observe(st, time.Since(start).Seconds())
	}()

	candidates, err := s.uow.Repos().Voyages().ListSweepCandidates(ctx, domain.DateOf(local))
	if err != nil {
		return st, fmt.Errorf("%s:%w", op, err)
	}

	for _, v := range candidates {
		if err := ctx.Err(); err != nil {
			return st, fmt.Errorf("%s:%w", op, err)
		}
		if !domain.Departed(v.DepartureDate, v.DepartureTime, local) {
			continue
		}

		st.VoyagesScanned++

		retired, archived, err := s.sweepVoyage(ctx, v, now)
		if retired {
			st.VoyagesRetired++
		}
		st.TicketsArchived += archived
		if err != nil {
			st.Failures++
			s.logger.ErrorContext(ctx, "sweep voyage",
				slog.Int64("voyage_id", v.ID),
				slog.Int("archived", archived),
				slog.Any("error", err),
			)
		}
	}

	return st, nil
}

// sweepVoyage migrates every live ticket of a departed voyage. The voyage is
// marked retired by the first committed migration, or on its own when it has
// no tickets.
func (s *Sweeper) sweepVoyage(ctx context.Context, v domain.Voyage, now time.Time) (bool, int, error) {
	const op = "service.sweep.sweepVoyage"

	tickets, err := s.uow.Repos().Tickets().ListByVoyage(ctx, v.ID)
	if err != nil {
		return false, 0, fmt.Errorf("%s:%w", op, err)
	}

	retired := false

	if len(tickets) == 0 {
		if v.Status == domain.VoyageRetired {
			return false, 0, nil
		}
		err := s.uow.Do(ctx, func(
			ctx context.Context,
			repos repository.Repositories,
			after func(uow.AfterCommit),
		) error {
			ok, err := retire(ctx, repos, v.ID)
			if err != nil {
				return err
			}
			retired = ok
			if ok {
				after(func(ctx context.Context) { s.announce(ctx, v.ID) })
			}
			return nil
		})
		if err != nil {
			return false, 0, fmt.Errorf("%s:%w", op, err)
		}
		return retired, 0, nil
	}

	archived := 0
	for _, t := range tickets {
		if err := ctx.Err(); err != nil {
			return retired, archived, fmt.Errorf("%s:%w", op, err)
		}

		ok, err := s.migrate(ctx, t, now)
		if errors.Is(err, errAlreadyMigrated) {
			continue
		}
		if err != nil {
			return retired, archived, fmt.Errorf("%s: ticket %s:%w", op, t.ID, err)
		}
		if ok {
			retired = true
		}
		archived++
	}

	return retired, archived, nil
}

// migrate archives one ticket, deletes it from the live table and retires its
// voyage if still active, all in one transaction. It reports whether this
// call retired the voyage.
func (s *Sweeper) migrate(ctx context.Context, t domain.Ticket, now time.Time) (bool, error) {
	retired := false

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		repos repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		retired = false

		v, err := repos.Voyages().Get(ctx, t.VoyageID)
		if err != nil {
			return err
		}

		inserted, err := repos.Archive().Insert(ctx, snapshot(t, v, now))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrArchiveWriteFailed, err)
		}

		if err := repos.Tickets().Delete(ctx, t.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errAlreadyMigrated
			}
			return err
		}

		ok, err := retire(ctx, repos, v.ID)
		if err != nil {
			return err
		}
		retired = ok

		after(func(ctx context.Context) {
			if ok {
				s.announce(ctx, v.ID)
			}
			if inserted {
				notify.Emit(ctx, s.notifier, s.logger, t.UserID, notify.TicketArchived, map[string]any{
					"ticket_id":      t.ID,
					"voyage_id":      v.ID,
					"departure_date": v.DepartureDate.Format(time.DateOnly),
				})
			}
		})
		return nil
	})

	return retired, err
}

// retire marks an active voyage retired and reports whether it did.
func retire(ctx context.Context, repos repository.Repositories, voyageID int64) (bool, error) {
	v, err := repos.Voyages().Get(ctx, voyageID)
	if err != nil {
		return false, err
	}
	if v.Status != domain.VoyageActive {
		return false, nil
	}
	if err := repos.Voyages().SetStatus(ctx, voyageID, domain.VoyageRetired); err != nil {
		return false, err
	}
	return true, nil
}

func snapshot(t domain.Ticket, v *domain.Voyage, now time.Time) *domain.ArchivedTicket {
	return &domain.ArchivedTicket{
		ID:              uuid.New(),
		TicketID:        t.ID,
		UserID:          t.UserID,
		VoyageID:        v.ID,
		Class:           t.Class,
		Seats:           t.Seats,
		PassengerName:   t.PassengerName,
		From:            v.From,
		To:              v.To,
		DepartureDate:   v.DepartureDate,
		DepartureTime:   v.DepartureTime,
		ArrivalTime:     v.ArrivalTime,
		VehicleType:     v.VehicleType,
		TicketCreatedAt: t.CreatedAt,
		ArchivedAt:      now,
	}
}

func (s *Sweeper) announce(ctx context.Context, voyageID int64) {
	if s.announcer != nil {
		s.announcer.Announce(ctx, voyageID)
	}
}
