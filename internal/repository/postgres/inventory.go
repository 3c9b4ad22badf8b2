package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
)

const inventoryColumns = `voyage_id, vehicle_type,
	upper_promo, upper_economy, upper_business,
	lower_promo, lower_economy, lower_business,
	sold_count, version, created_at, updated_at`

type InventoryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *InventoryRepo) With(db DB) *InventoryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *InventoryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts an all-zero inventory for a voyage, or returns the existing one.
//
// Returns:
//   - bool: true if the row was inserted by this call.
//   - error: repository.ErrNotFound if the voyage does not exist.
func (r *InventoryRepo) Create(ctx context.Context, inv *domain.SeatInventory) (*domain.SeatInventory, bool, error) {
	const op = "postgresrepo.InventoryRepo.Create"

	db := r.handle()

	b := bitmapArgs(inv.Seats)
	out, err := scanInventory(db.QueryRow(ctx,
		`INSERT INTO seat_inventories(
			voyage_id, vehicle_type,
			upper_promo, upper_economy, upper_business,
			lower_promo, lower_economy, lower_business, sold_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (voyage_id) DO NOTHING
		 RETURNING `+inventoryColumns,
		inv.VoyageID, string(inv.VehicleType),
		b[0], b[1], b[2], b[3], b[4], b[5], inv.SoldCount,
	))
	if err == nil {
		return out, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, wrapDBErr(op, err)
	}

	existing, err := r.Get(ctx, inv.VoyageID)
	if err != nil {
		return nil, false, fmt.Errorf("%s:%w", op, err)
	}

	return existing, false, nil
}

func (r *InventoryRepo) Get(ctx context.Context, voyageID int64) (*domain.SeatInventory, error) {
	const op = "postgresrepo.InventoryRepo.Get"

	db := r.handle()

	inv, err := scanInventory(db.QueryRow(ctx,
		`SELECT `+inventoryColumns+` FROM seat_inventories WHERE voyage_id = $1`,
		voyageID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return inv, nil
}

// GetForUpdate locks the inventory row until the surrounding transaction ends,
// serializing every read-modify-write on the same voyage.
func (r *InventoryRepo) GetForUpdate(ctx context.Context, voyageID int64) (*domain.SeatInventory, error) {
	const op = "postgresrepo.InventoryRepo.GetForUpdate"

	db := r.handle()

	inv, err := scanInventory(db.QueryRow(ctx,
		`SELECT `+inventoryColumns+`
		 FROM seat_inventories
		 WHERE voyage_id = $1
		 FOR UPDATE`,
		voyageID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return inv, nil
}

// Save writes the bitmaps with an optimistic version check.
//
// Returns:
//   - error: repository.ErrConflict if the row changed since it was read.
func (r *InventoryRepo) Save(ctx context.Context, inv *domain.SeatInventory) error {
	const op = "postgresrepo.InventoryRepo.Save"

	db := r.handle()

	b := bitmapArgs(inv.Seats)
	err := db.QueryRow(ctx,
		`UPDATE seat_inventories
		 SET upper_promo = $3, upper_economy = $4, upper_business = $5,
		     lower_promo = $6, lower_economy = $7, lower_business = $8,
		     sold_count = $9, version = version + 1, updated_at = now()
		 WHERE voyage_id = $1 AND version = $2
		 RETURNING version, updated_at`,
		inv.VoyageID, inv.Version,
		b[0], b[1], b[2], b[3], b[4], b[5], inv.SoldCount,
	).Scan(&inv.Version, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *InventoryRepo) Delete(ctx context.Context, voyageID int64) error {
	const op = "postgresrepo.InventoryRepo.Delete"

	db := r.handle()

	tag, err := db.Exec(ctx, `DELETE FROM seat_inventories WHERE voyage_id = $1`, voyageID)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// bitmapArgs stores each uint64 bitmap in a signed BIGINT column, keeping the
// bit pattern.
func bitmapArgs(bs seatmap.Bitmaps) [seatmap.PartitionCount]int64 {
	var out [seatmap.PartitionCount]int64
	for i, b := range bs {
		out[i] = int64(b)
	}
	return out
}

func scanInventory(row pgx.Row) (*domain.SeatInventory, error) {
	var (
		inv     domain.SeatInventory
		vehicle string
		raw     [seatmap.PartitionCount]int64
	)

	if err := row.Scan(
		&inv.VoyageID, &vehicle,
		&raw[0], &raw[1], &raw[2], &raw[3], &raw[4], &raw[5],
		&inv.SoldCount, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return nil, err
	}

	inv.VehicleType = seatmap.VehicleType(vehicle)
	for i, v := range raw {
		inv.Seats[i] = seatmap.Bitmap(uint64(v))
	}

	return &inv, nil
}
