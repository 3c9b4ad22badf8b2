package postgresrepo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/ferry-go/internal/domain"
)

type StationRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *StationRepo) With(db DB) *StationRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *StationRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *StationRepo) Get(ctx context.Context, id int64) (*domain.Station, error) {
	const op = "postgresrepo.StationRepo.Get"

	db := r.handle()

	var s domain.Station
	err := db.QueryRow(ctx,
		`SELECT id, city, title FROM stations WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.City, &s.Title)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &s, nil
}
