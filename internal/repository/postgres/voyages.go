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

const voyageColumns = `id, template_id,
	from_station_id, from_city, from_title,
	to_station_id, to_city, to_title,
	departure_date, departure_minute, arrival_minute, vehicle_type,
	promo_capacity, economy_capacity, business_capacity,
	status, provenance, created_at, updated_at`

type VoyageRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *VoyageRepo) With(db DB) *VoyageRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *VoyageRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts a voyage and returns its ID.
//
// Returns:
//   - error: repository.ErrConflict if the template already has a voyage on that date.
func (r *VoyageRepo) Create(ctx context.Context, v *domain.Voyage) (int64, error) {
	const op = "postgresrepo.VoyageRepo.Create"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO voyages(
			template_id,
			from_station_id, from_city, from_title,
			to_station_id, to_city, to_title,
			departure_date, departure_minute, arrival_minute, vehicle_type,
			promo_capacity, economy_capacity, business_capacity,
			status, provenance)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING id`,
		v.TemplateID,
		v.From.StationID, v.From.City, v.From.Title,
		v.To.StationID, v.To.City, v.To.Title,
		domain.DateOf(v.DepartureDate), int(v.DepartureTime), int(v.ArrivalTime), string(v.VehicleType),
		v.Capacity.Promo, v.Capacity.Economy, v.Capacity.Business,
		string(v.Status), string(v.Provenance),
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *VoyageRepo) Get(ctx context.Context, id int64) (*domain.Voyage, error) {
	const op = "postgresrepo.VoyageRepo.Get"

	db := r.handle()

	v, err := scanVoyage(db.QueryRow(ctx,
		`SELECT `+voyageColumns+` FROM voyages WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return v, nil
}

// Update writes every mutable voyage field.
func (r *VoyageRepo) Update(ctx context.Context, v *domain.Voyage) error {
	const op = "postgresrepo.VoyageRepo.Update"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE voyages
		 SET from_station_id = $2, from_city = $3, from_title = $4,
		     to_station_id = $5, to_city = $6, to_title = $7,
		     departure_date = $8, departure_minute = $9, arrival_minute = $10,
		     vehicle_type = $11,
		     promo_capacity = $12, economy_capacity = $13, business_capacity = $14,
		     status = $15, provenance = $16, updated_at = now()
		 WHERE id = $1`,
		v.ID,
		v.From.StationID, v.From.City, v.From.Title,
		v.To.StationID, v.To.City, v.To.Title,
		domain.DateOf(v.DepartureDate), int(v.DepartureTime), int(v.ArrivalTime),
		string(v.VehicleType),
		v.Capacity.Promo, v.Capacity.Economy, v.Capacity.Business,
		string(v.Status), string(v.Provenance),
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *VoyageRepo) Delete(ctx context.Context, id int64) error {
	const op = "postgresrepo.VoyageRepo.Delete"

	db := r.handle()

	tag, err := db.Exec(ctx, `DELETE FROM voyages WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *VoyageRepo) SetStatus(ctx context.Context, id int64, status domain.VoyageStatus) error {
	const op = "postgresrepo.VoyageRepo.SetStatus"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE voyages SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *VoyageRepo) ExistsForTemplateDate(ctx context.Context, templateID int64, date time.Time) (bool, error) {
	const op = "postgresrepo.VoyageRepo.ExistsForTemplateDate"

	db := r.handle()

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM voyages WHERE template_id = $1 AND departure_date = $2
		 )`,
		templateID, domain.DateOf(date),
	).Scan(&exists); err != nil {
		return false, wrapDBErr(op, err)
	}

	return exists, nil
}

func (r *VoyageRepo) ListByTemplate(ctx context.Context, templateID int64, rng repository.DateRange) ([]domain.Voyage, error) {
	const op = "postgresrepo.VoyageRepo.ListByTemplate"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+voyageColumns+`
		 FROM voyages
		 WHERE template_id = $1
		   AND departure_date >= $2
		   AND ($3::date IS NULL OR departure_date <= $3)
		 ORDER BY departure_date, departure_minute, id`,
		templateID, domain.DateOf(rng.From), dateArg(rng.To),
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collectVoyages(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *VoyageRepo) DeleteUnmodifiedByTemplate(ctx context.Context, templateID int64, rng repository.DateRange) (int64, error) {
	const op = "postgresrepo.VoyageRepo.DeleteUnmodifiedByTemplate"

	db := r.handle()

	// seat_inventories rows go with the voyage via ON DELETE CASCADE.
	tag, err := db.Exec(ctx,
		`DELETE FROM voyages v
		 WHERE v.template_id = $1
		   AND v.provenance = 'template'
		   AND v.status <> 'retired'
		   AND v.departure_date >= $2
		   AND ($3::date IS NULL OR v.departure_date <= $3)
		   AND NOT EXISTS (
		       SELECT 1 FROM seat_inventories si
		       WHERE si.voyage_id = v.id AND si.sold_count > 0)
		   AND NOT EXISTS (
		       SELECT 1 FROM tickets t WHERE t.voyage_id = v.id)`,
		templateID, domain.DateOf(rng.From), dateArg(rng.To),
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *VoyageRepo) CancelUnmodifiedByTemplate(ctx context.Context, templateID int64, rng repository.DateRange) (int64, error) {
	const op = "postgresrepo.VoyageRepo.CancelUnmodifiedByTemplate"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE voyages
		 SET status = 'cancelled', updated_at = now()
		 WHERE template_id = $1
		   AND provenance = 'template'
		   AND status = 'active'
		   AND departure_date >= $2
		   AND ($3::date IS NULL OR departure_date <= $3)`,
		templateID, domain.DateOf(rng.From), dateArg(rng.To),
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *VoyageRepo) CancelByRoute(ctx context.Context, route domain.Route, rng repository.DateRange) (int64, error) {
	const op = "postgresrepo.VoyageRepo.CancelByRoute"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE voyages
		 SET status = 'cancelled', updated_at = now()
		 WHERE from_station_id = $1
		   AND to_station_id = $2
		   AND status = 'active'
		   AND departure_date >= $3
		   AND ($4::date IS NULL OR departure_date <= $4)`,
		route.FromStationID, route.ToStationID, domain.DateOf(rng.From), dateArg(rng.To),
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *VoyageRepo) CountByTemplate(ctx context.Context, templateID int64) (domain.TemplateVoyageCounts, error) {
	const op = "postgresrepo.VoyageRepo.CountByTemplate"

	db := r.handle()

	var c domain.TemplateVoyageCounts
	err := db.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'retired' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN provenance = 'operator' THEN 1 ELSE 0 END), 0),
			COUNT(*)
		 FROM voyages
		 WHERE template_id = $1`,
		templateID,
	).Scan(&c.Active, &c.Cancelled, &c.Retired, &c.Modified, &c.Total)
	if err != nil {
		return c, wrapDBErr(op, err)
	}

	return c, nil
}

func (r *VoyageRepo) ListSweepCandidates(ctx context.Context, onOrBefore time.Time) ([]domain.Voyage, error) {
	const op = "postgresrepo.VoyageRepo.ListSweepCandidates"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+voyageColumns+`
		 FROM voyages v
		 WHERE (v.status = 'active' AND v.departure_date <= $1)
		    OR (v.status = 'retired' AND EXISTS (
		        SELECT 1 FROM tickets t WHERE t.voyage_id = v.id))
		 ORDER BY departure_date, departure_minute, id`,
		domain.DateOf(onOrBefore),
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collectVoyages(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func scanVoyage(row pgx.Row) (*domain.Voyage, error) {
	var (
		v                    domain.Voyage
		templateID           *int64
		depMinute, arrMinute int
		vehicle, status      string
		provenance           string
	)

	if err := row.Scan(
		&v.ID, &templateID,
		&v.From.StationID, &v.From.City, &v.From.Title,
		&v.To.StationID, &v.To.City, &v.To.Title,
		&v.DepartureDate, &depMinute, &arrMinute, &vehicle,
		&v.Capacity.Promo, &v.Capacity.Economy, &v.Capacity.Business,
		&status, &provenance, &v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}

	v.TemplateID = templateID
	v.DepartureDate = domain.DateOf(v.DepartureDate)
	v.DepartureTime = domain.TimeOfDay(depMinute)
	v.ArrivalTime = domain.TimeOfDay(arrMinute)
	v.VehicleType = seatmap.VehicleType(vehicle)
	v.Status = domain.VoyageStatus(status)
	v.Provenance = domain.Provenance(provenance)

	return &v, nil
}

func collectVoyages(rows pgx.Rows) ([]domain.Voyage, error) {
	defer rows.Close()

	var out []domain.Voyage
	for rows.Next() {
		v, err := scanVoyage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
