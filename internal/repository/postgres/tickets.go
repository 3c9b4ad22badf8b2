package postgresrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
)

type TicketRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TicketRepo) With(db DB) *TicketRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TicketRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *TicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	const op = "postgresrepo.TicketRepo.Create"

	db := r.handle()

	seats, err := json.Marshal(t.Seats)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if _, err := db.Exec(ctx,
		`INSERT INTO tickets(id, voyage_id, user_id, class, seats, passenger_name)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.VoyageID, t.UserID, t.Class.String(), seats, t.PassengerName,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *TicketRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.Get"

	db := r.handle()

	t, err := scanTicket(db.QueryRow(ctx,
		`SELECT id, voyage_id, user_id, class, seats, passenger_name, created_at
		 FROM tickets
		 WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

// ListByVoyage returns the live tickets of a voyage. A row whose seat payload
// cannot be decoded fails the whole call.
func (r *TicketRepo) ListByVoyage(ctx context.Context, voyageID int64) ([]domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.ListByVoyage"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, voyage_id, user_id, class, seats, passenger_name, created_at
		 FROM tickets
		 WHERE voyage_id = $1
		 ORDER BY created_at, id`,
		voyageID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *TicketRepo) CountByVoyage(ctx context.Context, voyageID int64) (int64, error) {
	const op = "postgresrepo.TicketRepo.CountByVoyage"

	db := r.handle()

	var n int64
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE voyage_id = $1`,
		voyageID,
	).Scan(&n); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}

func (r *TicketRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "postgresrepo.TicketRepo.Delete"

	db := r.handle()

	tag, err := db.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t     domain.Ticket
		class string
		seats []byte
	)

	if err := row.Scan(&t.ID, &t.VoyageID, &t.UserID, &class, &seats, &t.PassengerName, &t.CreatedAt); err != nil {
		return nil, err
	}

	c, err := seatmap.ParseClass(class)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", t.ID, err)
	}
	t.Class = c

	if err := json.Unmarshal(seats, &t.Seats); err != nil {
		return nil, fmt.Errorf("ticket %s: malformed seats: %w", t.ID, err)
	}

	return &t, nil
}
