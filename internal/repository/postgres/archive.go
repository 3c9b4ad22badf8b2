package postgresrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
)

const archiveColumns = `id, ticket_id, user_id, voyage_id, class, seats, passenger_name,
	from_station_id, from_city, from_title,
	to_station_id, to_city, to_title,
	departure_date, departure_minute, arrival_minute, vehicle_type,
	ticket_created_at, archived_at`

type ArchiveRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ArchiveRepo) With(db DB) *ArchiveRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ArchiveRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Insert stores an archived ticket. It reports false when the ticket already
// has an archive row.
func (r *ArchiveRepo) Insert(ctx context.Context, a *domain.ArchivedTicket) (bool, error) {
	const op = "postgresrepo.ArchiveRepo.Insert"

	db := r.handle()

	seats, err := json.Marshal(a.Seats)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	tag, err := db.Exec(ctx,
		`INSERT INTO archived_tickets(
			id, ticket_id, user_id, voyage_id, class, seats, passenger_name,
			from_station_id, from_city, from_title,
			to_station_id, to_city, to_title,
			departure_date, departure_minute, arrival_minute, vehicle_type,
			ticket_created_at, archived_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			COALESCE($19::timestamptz, now()))
		 ON CONFLICT (ticket_id) DO NOTHING`,
		a.ID, a.TicketID, a.UserID, a.VoyageID, a.Class.String(), seats, a.PassengerName,
		a.From.StationID, a.From.City, a.From.Title,
		a.To.StationID, a.To.City, a.To.Title,
		domain.DateOf(a.DepartureDate), int(a.DepartureTime), int(a.ArrivalTime), string(a.VehicleType),
		a.TicketCreatedAt, dateArg(a.ArchivedAt),
	)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *ArchiveRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.ArchivedTicket, error) {
	const op = "postgresrepo.ArchiveRepo.ListByUser"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+archiveColumns+`
		 FROM archived_tickets
		 WHERE user_id = $1
		 ORDER BY departure_date DESC, ticket_id
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collectArchived(rows)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (r *ArchiveRepo) ListByVoyage(ctx context.Context, voyageID int64) ([]domain.ArchivedTicket, error) {
	const op = "postgresrepo.ArchiveRepo.ListByVoyage"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+archiveColumns+`
		 FROM archived_tickets
		 WHERE voyage_id = $1
		 ORDER BY ticket_id`,
		voyageID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collectArchived(rows)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func collectArchived(rows pgx.Rows) ([]domain.ArchivedTicket, error) {
	defer rows.Close()

	var out []domain.ArchivedTicket
	for rows.Next() {
		var (
			a                    domain.ArchivedTicket
			class, vehicle       string
			seats                []byte
			depMinute, arrMinute int
		)

		if err := rows.Scan(
			&a.ID, &a.TicketID, &a.UserID, &a.VoyageID, &class, &seats, &a.PassengerName,
			&a.From.StationID, &a.From.City, &a.From.Title,
			&a.To.StationID, &a.To.City, &a.To.Title,
			&a.DepartureDate, &depMinute, &arrMinute, &vehicle,
			&a.TicketCreatedAt, &a.ArchivedAt,
		); err != nil {
			return nil, translateDBErr(err)
		}

		c, err := seatmap.ParseClass(class)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(seats, &a.Seats); err != nil {
			return nil, err
		}

		a.Class = c
		a.DepartureDate = domain.DateOf(a.DepartureDate)
		a.DepartureTime = domain.TimeOfDay(depMinute)
		a.ArrivalTime = domain.TimeOfDay(arrMinute)
		a.VehicleType = seatmap.VehicleType(vehicle)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, translateDBErr(err)
	}

	return out, nil
}
