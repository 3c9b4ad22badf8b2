package postgresrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
)

const templateColumns = `id, from_station_id, to_station_id, day_of_week,
	departure_minute, arrival_minute, vehicle_type,
	promo_capacity, economy_capacity, business_capacity,
	is_active, created_at, updated_at`

type TemplateRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TemplateRepo) With(db DB) *TemplateRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TemplateRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *TemplateRepo) Create(ctx context.Context, t *domain.ScheduleTemplate) (int64, error) {
	const op = "postgresrepo.TemplateRepo.Create"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO schedule_templates(
			from_station_id, to_station_id, day_of_week,
			departure_minute, arrival_minute, vehicle_type,
			promo_capacity, economy_capacity, business_capacity, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		t.Route.FromStationID, t.Route.ToStationID, int(t.DayOfWeek),
		int(t.DepartureTime), int(t.ArrivalTime), string(t.VehicleType),
		t.Capacity.Promo, t.Capacity.Economy, t.Capacity.Business, t.IsActive,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *TemplateRepo) Get(ctx context.Context, id int64) (*domain.ScheduleTemplate, error) {
	const op = "postgresrepo.TemplateRepo.Get"

	db := r.handle()

	t, err := scanTemplate(db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM schedule_templates WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TemplateRepo) Update(ctx context.Context, t *domain.ScheduleTemplate) error {
	const op = "postgresrepo.TemplateRepo.Update"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE schedule_templates
		 SET from_station_id = $2, to_station_id = $3, day_of_week = $4,
		     departure_minute = $5, arrival_minute = $6, vehicle_type = $7,
		     promo_capacity = $8, economy_capacity = $9, business_capacity = $10,
		     is_active = $11, updated_at = now()
		 WHERE id = $1`,
		t.ID,
		t.Route.FromStationID, t.Route.ToStationID, int(t.DayOfWeek),
		int(t.DepartureTime), int(t.ArrivalTime), string(t.VehicleType),
		t.Capacity.Promo, t.Capacity.Economy, t.Capacity.Business, t.IsActive,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *TemplateRepo) List(ctx context.Context, activeOnly bool) ([]domain.ScheduleTemplate, error) {
	const op = "postgresrepo.TemplateRepo.List"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+templateColumns+`
		 FROM schedule_templates
		 WHERE NOT $1 OR is_active
		 ORDER BY id`,
		activeOnly,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.ScheduleTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func scanTemplate(row pgx.Row) (*domain.ScheduleTemplate, error) {
	var (
		t                    domain.ScheduleTemplate
		day                  int
		depMinute, arrMinute int
		vehicle              string
	)

	if err := row.Scan(
		&t.ID, &t.Route.FromStationID, &t.Route.ToStationID, &day,
		&depMinute, &arrMinute, &vehicle,
		&t.Capacity.Promo, &t.Capacity.Economy, &t.Capacity.Business,
		&t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	t.DayOfWeek = time.Weekday(day)
	t.DepartureTime = domain.TimeOfDay(depMinute)
	t.ArrivalTime = domain.TimeOfDay(arrMinute)
	t.VehicleType = seatmap.VehicleType(vehicle)

	return &t, nil
}
