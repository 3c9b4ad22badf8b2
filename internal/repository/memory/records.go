package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository"
)

type TemplateRepo struct {
	h handles
}

func (r *TemplateRepo) Create(ctx context.Context, t *domain.ScheduleTemplate) (int64, error) {
	var id int64
	err := r.h.write(ctx, func(st *state) error {
		st.nextTemplateID++
		id = st.nextTemplateID

		now := r.h.s.now()
		cp := *t
		cp.ID = id
		cp.CreatedAt = now
		cp.UpdatedAt = now
		st.templates[id] = cp
		return nil
	})

	return id, err
}

func (r *TemplateRepo) Get(ctx context.Context, id int64) (*domain.ScheduleTemplate, error) {
	const op = "memory.TemplateRepo.Get"

	var out domain.ScheduleTemplate
	err := r.h.read(ctx, func(st *state) error {
		t, ok := st.templates[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *TemplateRepo) Update(ctx context.Context, t *domain.ScheduleTemplate) error {
	const op = "memory.TemplateRepo.Update"

	return r.h.write(ctx, func(st *state) error {
		cur, ok := st.templates[t.ID]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		cp := *t
		cp.CreatedAt = cur.CreatedAt
		cp.UpdatedAt = r.h.s.now()
		st.templates[t.ID] = cp
		return nil
	})
}

func (r *TemplateRepo) List(ctx context.Context, activeOnly bool) ([]domain.ScheduleTemplate, error) {
	var out []domain.ScheduleTemplate
	err := r.h.read(ctx, func(st *state) error {
		for _, t := range st.templates {
			if activeOnly && !t.IsActive {
				continue
			}
			out = append(out, t)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, err
}

type InventoryRepo struct {
	h handles
}

func (r *InventoryRepo) Create(ctx context.Context, inv *domain.SeatInventory) (*domain.SeatInventory, bool, error) {
	const op = "memory.InventoryRepo.Create"

	var (
		out     domain.SeatInventory
		created bool
	)
	err := r.h.write(ctx, func(st *state) error {
		if cur, ok := st.inventories[inv.VoyageID]; ok {
			out = cur
			return nil
		}
		if _, ok := st.voyages[inv.VoyageID]; !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}

		now := r.h.s.now()
		out = *inv
		out.Version = 1
		out.CreatedAt = now
		out.UpdatedAt = now
		st.inventories[inv.VoyageID] = out
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return &out, created, nil
}

func (r *InventoryRepo) Get(ctx context.Context, voyageID int64) (*domain.SeatInventory, error) {
	const op = "memory.InventoryRepo.Get"

	var out domain.SeatInventory
	err := r.h.read(ctx, func(st *state) error {
		inv, ok := st.inventories[voyageID]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// GetForUpdate is Get: inside RunTx the whole store is already locked.
func (r *InventoryRepo) GetForUpdate(ctx context.Context, voyageID int64) (*domain.SeatInventory, error) {
	return r.Get(ctx, voyageID)
}

func (r *InventoryRepo) Save(ctx context.Context, inv *domain.SeatInventory) error {
	const op = "memory.InventoryRepo.Save"

	return r.h.write(ctx, func(st *state) error {
		cur, ok := st.inventories[inv.VoyageID]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		if cur.Version != inv.Version {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}

		cur.Seats = inv.Seats
		cur.SoldCount = inv.SoldCount
		cur.Version++
		cur.UpdatedAt = r.h.s.now()
		st.inventories[inv.VoyageID] = cur

		inv.Version = cur.Version
		inv.UpdatedAt = cur.UpdatedAt
		return nil
	})
}

func (r *InventoryRepo) Delete(ctx context.Context, voyageID int64) error {
	const op = "memory.InventoryRepo.Delete"

	return r.h.write(ctx, func(st *state) error {
		if _, ok := st.inventories[voyageID]; !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		delete(st.inventories, voyageID)
		return nil
	})
}

type TicketRepo struct {
	h handles
}

func (r *TicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	const op = "memory.TicketRepo.Create"

	return r.h.write(ctx, func(st *state) error {
		if _, ok := st.tickets[t.ID]; ok {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
		if _, ok := st.voyages[t.VoyageID]; !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		cp := *t
		cp.Seats = slices.Clone(t.Seats)
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = r.h.s.now()
		}
		st.tickets[t.ID] = cp
		return nil
	})
}

func (r *TicketRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "memory.TicketRepo.Get"

	var out domain.Ticket
	err := r.h.read(ctx, func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		t.Seats = slices.Clone(t.Seats)
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *TicketRepo) ListByVoyage(ctx context.Context, voyageID int64) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := r.h.read(ctx, func(st *state) error {
		for _, t := range st.tickets {
			if t.VoyageID == voyageID {
				t.Seats = slices.Clone(t.Seats)
				out = append(out, t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	return out, err
}

func (r *TicketRepo) CountByVoyage(ctx context.Context, voyageID int64) (int64, error) {
	var n int64
	err := r.h.read(ctx, func(st *state) error {
		for _, t := range st.tickets {
			if t.VoyageID == voyageID {
				n++
			}
		}
		return nil
	})

	return n, err
}

func (r *TicketRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "memory.TicketRepo.Delete"

	return r.h.write(ctx, func(st *state) error {
		if _, ok := st.tickets[id]; !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		delete(st.tickets, id)
		return nil
	})
}

type ArchiveRepo struct {
	h handles
}

func (r *ArchiveRepo) Insert(ctx context.Context, a *domain.ArchivedTicket) (bool, error) {
	var inserted bool
	err := r.h.write(ctx, func(st *state) error {
		if _, ok := st.archive[a.TicketID]; ok {
			return nil
		}
		cp := *a
		cp.Seats = slices.Clone(a.Seats)
		if cp.ArchivedAt.IsZero() {
			cp.ArchivedAt = r.h.s.now()
		}
		st.archive[a.TicketID] = cp
		inserted = true
		return nil
	})

	return inserted, err
}

func (r *ArchiveRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.ArchivedTicket, error) {
	out, err := r.list(ctx, func(a domain.ArchivedTicket) bool { return a.UserID == userID })
	if err != nil {
		return nil, err
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}

	return out, nil
}

func (r *ArchiveRepo) ListByVoyage(ctx context.Context, voyageID int64) ([]domain.ArchivedTicket, error) {
	return r.list(ctx, func(a domain.ArchivedTicket) bool { return a.VoyageID == voyageID })
}

func (r *ArchiveRepo) list(ctx context.Context, keep func(domain.ArchivedTicket) bool) ([]domain.ArchivedTicket, error) {
	var out []domain.ArchivedTicket
	err := r.h.read(ctx, func(st *state) error {
		for _, a := range st.archive {
			if keep(a) {
				a.Seats = slices.Clone(a.Seats)
				out = append(out, a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DepartureDate.Equal(out[j].DepartureDate) {
			return out[i].DepartureDate.After(out[j].DepartureDate)
		}
		return out[i].TicketID.String() < out[j].TicketID.String()
	})

	return out, err
}

type StationRepo struct {
	h handles
}

func (r *StationRepo) Get(ctx context.Context, id int64) (*domain.Station, error) {
	const op = "memory.StationRepo.Get"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.h.s.stationsMu.RLock()
	defer r.h.s.stationsMu.RUnlock()

	st, ok := r.h.s.stations[id]
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return &st, nil
}
