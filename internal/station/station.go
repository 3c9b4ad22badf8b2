// Package station resolves station display fields stamped onto voyages.
package station

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository"
	redisrepo "github.com/kirinyoku/ferry-go/internal/repository/redis"
)

var ErrStationNotFound = errors.New("station not found")

// Lookup resolves a station by id.
type Lookup interface {
	GetStation(ctx context.Context, id int64) (*domain.Station, error)
}

type Directory struct {
	stations repository.StationRepository
	cache    *redisrepo.Cache
	ttl      time.Duration
}

// NewDirectory reads through cache when it is non-nil.
func NewDirectory(stations repository.StationRepository, cache *redisrepo.Cache, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Directory{stations: stations, cache: cache, ttl: ttl}
}

func (d *Directory) GetStation(ctx context.Context, id int64) (*domain.Station, error) {
	const op = "station.Directory.GetStation"

	load := func(ctx context.Context) (domain.Station, error) {
		st, err := d.stations.Get(ctx, id)
		if err != nil {
			return domain.Station{}, err
		}
		return *st, nil
	}

	var (
		st  domain.Station
		err error
	)
	if d.cache != nil {
		st, err = redisrepo.GetOrSetJSON(ctx, d.cache, redisrepo.KeyStation(id), d.ttl, load)
	} else {
		st, err = load(ctx)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: station %d:%w", op, id, ErrStationNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &st, nil
}

// Endpoints stamps both ends of a route.
func Endpoints(ctx context.Context, l Lookup, route domain.Route) (from, to domain.Endpoint, err error) {
	const op = "station.Endpoints"

	f, err := l.GetStation(ctx, route.FromStationID)
	if err != nil {
		return from, to, fmt.Errorf("%s:%w", op, err)
	}
	t, err := l.GetStation(ctx, route.ToStationID)
	if err != nil {
		return from, to, fmt.Errorf("%s:%w", op, err)
	}

	return endpoint(f), endpoint(t), nil
}

func endpoint(s *domain.Station) domain.Endpoint {
	return domain.Endpoint{StationID: s.ID, City: s.City, Title: s.Title}
}
