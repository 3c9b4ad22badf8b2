// Package query serves the read models of voyages and the ticket archive.
// Voyage views are cached in redis when a cache is configured.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository"
	redisrepo "github.com/kirinyoku/ferry-go/internal/repository/redis"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
)

type Config struct {
	VoyageSummaryTTL   time.Duration
	AvailabilityTTL    time.Duration
	SeatMapTTL         time.Duration
	DefaultArchivePage int
	MaxArchivePage     int
}

// Availability is the per-class seat summary of one voyage.
type Availability struct {
	VoyageID int64                                         `json:"voyage_id"`
	Status   domain.VoyageStatus                           `json:"status"`
	Vehicle  seatmap.VehicleType                           `json:"vehicle_type"`
	Classes  [seatmap.ClassCount]seatmap.ClassAvailability `json:"classes"`
	Sold     int                                           `json:"sold"`
	Version  int64                                         `json:"version"`
}

// SeatMap is the decoded per-seat view of one voyage.
type SeatMap struct {
	VoyageID int64        `json:"voyage_id"`
	Version  int64        `json:"version"`
	View     seatmap.View `json:"seats"`
}

type Service struct {
	repos    repository.Repositories
	profiles *seatmap.Profiles
	cache    *redisrepo.Cache
	cfg      Config
}

// New reads through cache when it is non-nil.
func New(repos repository.Repositories, profiles *seatmap.Profiles, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.VoyageSummaryTTL <= 0 {
		cfg.VoyageSummaryTTL = 60 * time.Second
	}

	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	if cfg.SeatMapTTL <= 0 {
		cfg.SeatMapTTL = 15 * time.Second
	}

	if cfg.DefaultArchivePage <= 0 {
		cfg.DefaultArchivePage = 50
	}

	if cfg.MaxArchivePage <= 0 {
		cfg.MaxArchivePage = 200
	}

	return &Service{
		repos:    repos,
		profiles: profiles,
		cache:    cache,
		cfg:      cfg,
	}
}

// GetVoyage retrieves a voyage by its ID.
//
// Parameters:
//   - ctx: request-scoped context.
//   - id: ID of the voyage to retrieve.
//
// Returns:
//   - *domain.Voyage: the retrieved voyage.
//   - error: query.ErrVoyageNotFound if the voyage does not exist.
func (s *Service) GetVoyage(ctx context.Context, id int64) (*domain.Voyage, error) {
	const op = "service.query.GetVoyage"

	v, err := cached(ctx, s.cache, redisrepo.KeyVoyageSummary(id), s.cfg.VoyageSummaryTTL,
		func(ctx context.Context) (domain.Voyage, error) {
			v, err := s.repos.Voyages().Get(ctx, id)
			if err != nil {
				return domain.Voyage{}, notFound(err)
			}
			return *v, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &v, nil
}

// GetAvailability returns per-class capacity, taken and available counts.
//
// Returns:
//   - *Availability: the summary as of the inventory version read.
//   - error: query.ErrVoyageNotFound if the voyage or its inventory does not exist.
func (s *Service) GetAvailability(ctx context.Context, voyageID int64) (*Availability, error) {
	const op = "service.query.GetAvailability"

	a, err := cached(ctx, s.cache, redisrepo.KeyVoyageAvailability(voyageID), s.cfg.AvailabilityTTL,
		func(ctx context.Context) (Availability, error) {
			v, inv, view, err := s.load(ctx, voyageID)
			if err != nil {
				return Availability{}, err
			}
			return Availability{
				VoyageID: voyageID,
				Status:   v.Status,
				Vehicle:  view.Vehicle,
				Classes:  view.Classes,
				Sold:     view.Sold,
				Version:  inv.Version,
			}, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &a, nil
}

// GetSeatMap returns the decoded seat-by-seat view of a voyage.
//
// Returns:
//   - error: query.ErrVoyageNotFound if the voyage or its inventory does not exist.
func (s *Service) GetSeatMap(ctx context.Context, voyageID int64) (*SeatMap, error) {
	const op = "service.query.GetSeatMap"

	m, err := cached(ctx, s.cache, redisrepo.KeyVoyageSeatMap(voyageID), s.cfg.SeatMapTTL,
		func(ctx context.Context) (SeatMap, error) {
			_, inv, view, err := s.load(ctx, voyageID)
			if err != nil {
				return SeatMap{}, err
			}
			return SeatMap{VoyageID: voyageID, Version: inv.Version, View: view}, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &m, nil
}

func (s *Service) load(ctx context.Context, voyageID int64) (*domain.Voyage, *domain.SeatInventory, seatmap.View, error) {
	v, err := s.repos.Voyages().Get(ctx, voyageID)
	if err != nil {
		return nil, nil, seatmap.View{}, notFound(err)
	}

	inv, err := s.repos.Inventories().Get(ctx, voyageID)
	if err != nil {
		return nil, nil, seatmap.View{}, notFound(err)
	}

	profile, err := s.profiles.Lookup(inv.VehicleType)
	if err != nil {
		return nil, nil, seatmap.View{}, err
	}

	view, err := seatmap.Decode(inv.Seats, profile)
	if err != nil {
		return nil, nil, seatmap.View{}, err
	}

	return v, inv, view, nil
}

// ListArchivedByUser returns a user's archived tickets, newest departure
// first. Pagination is supported via limit and offset.
//
// Returns:
//   - error: query.ErrInvalidPage if offset is negative.
func (s *Service) ListArchivedByUser(
	ctx context.Context,
	userID int64,
	limit, offset int,
) ([]domain.ArchivedTicket, error) {
	const op = "service.query.ListArchivedByUser"

	if offset < 0 {
		return nil, fmt.Errorf("%s:%w: offset %d", op, ErrInvalidPage, offset)
	}

	if limit <= 0 {
		limit = s.cfg.DefaultArchivePage
	}

	if limit > s.cfg.MaxArchivePage {
		limit = s.cfg.MaxArchivePage
	}

	out, err := s.repos.Archive().ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// ListArchivedByVoyage returns every archived ticket of a voyage. An unknown
// voyage yields an empty list.
func (s *Service) ListArchivedByVoyage(ctx context.Context, voyageID int64) ([]domain.ArchivedTicket, error) {
	const op = "service.query.ListArchivedByVoyage"

	out, err := s.repos.Archive().ListByVoyage(ctx, voyageID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func cached[T any](
	ctx context.Context,
	c *redisrepo.Cache,
	key string,
	ttl time.Duration,
	load func(ctx context.Context) (T, error),
) (T, error) {
	if c == nil {
		return load(ctx)
	}
	return redisrepo.GetOrSetJSON(ctx, c, key, ttl, load)
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrVoyageNotFound
	}
	return err
}
