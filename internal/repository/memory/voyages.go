package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository"
)

type VoyageRepo struct {
	h handles
}

func (r *VoyageRepo) Create(ctx context.Context, v *domain.Voyage) (int64, error) {
	const op = "memory.VoyageRepo.Create"

	var id int64
	err := r.h.write(ctx, func(st *state) error {
		cand := *v
		cand.ID = 0
		cand.DepartureDate = domain.DateOf(v.DepartureDate)
		if templateDateTaken(st, cand) {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}

		st.nextVoyageID++
		id = st.nextVoyageID

		now := r.h.s.now()
		cp := cloneVoyage(*v)
		cp.ID = id
		cp.DepartureDate = domain.DateOf(cp.DepartureDate)
		cp.CreatedAt = now
		cp.UpdatedAt = now
		st.voyages[id] = cp
		return nil
	})

	return id, err
}

func (r *VoyageRepo) Get(ctx context.Context, id int64) (*domain.Voyage, error) {
	const op = "memory.VoyageRepo.Get"

	var out domain.Voyage
	err := r.h.read(ctx, func(st *state) error {
		v, ok := st.voyages[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		out = cloneVoyage(v)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *VoyageRepo) Update(ctx context.Context, v *domain.Voyage) error {
	const op = "memory.VoyageRepo.Update"

	return r.h.write(ctx, func(st *state) error {
		cur, ok := st.voyages[v.ID]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		cp := cloneVoyage(*v)
		cp.DepartureDate = domain.DateOf(cp.DepartureDate)
		if templateDateTaken(st, cp) {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
		cp.CreatedAt = cur.CreatedAt
		cp.UpdatedAt = r.h.s.now()
		st.voyages[v.ID] = cp
		return nil
	})
}

func (r *VoyageRepo) Delete(ctx context.Context, id int64) error {
	const op = "memory.VoyageRepo.Delete"

	return r.h.write(ctx, func(st *state) error {
		if _, ok := st.voyages[id]; !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		delete(st.voyages, id)
		delete(st.inventories, id)
		return nil
	})
}

func (r *VoyageRepo) SetStatus(ctx context.Context, id int64, status domain.VoyageStatus) error {
	const op = "memory.VoyageRepo.SetStatus"

	return r.h.write(ctx, func(st *state) error {
		v, ok := st.voyages[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		v.Status = status
		v.UpdatedAt = r.h.s.now()
		st.voyages[id] = v
		return nil
	})
}

func (r *VoyageRepo) ExistsForTemplateDate(ctx context.Context, templateID int64, date time.Time) (bool, error) {
	var found bool
	err := r.h.read(ctx, func(st *state) error {
		date = domain.DateOf(date)
		for _, v := range st.voyages {
			if v.TemplateID != nil && *v.TemplateID == templateID && v.DepartureDate.Equal(date) {
				found = true
				return nil
			}
		}
		return nil
	})

	return found, err
}

func (r *VoyageRepo) ListByTemplate(ctx context.Context, templateID int64, rng repository.DateRange) ([]domain.Voyage, error) {
	var out []domain.Voyage
	err := r.h.read(ctx, func(st *state) error {
		for _, v := range st.voyages {
			if v.TemplateID != nil && *v.TemplateID == templateID && rng.Contains(v.DepartureDate) {
				out = append(out, cloneVoyage(v))
			}
		}
		return nil
	})
	sortVoyages(out)

	return out, err
}

func (r *VoyageRepo) DeleteUnmodifiedByTemplate(ctx context.Context, templateID int64, rng repository.DateRange) (int64, error) {
	var n int64
	err := r.h.write(ctx, func(st *state) error {
		for id, v := range st.voyages {
			if !inTemplateRange(v, templateID, rng) || v.IsModified() || v.Status == domain.VoyageRetired {
				continue
			}
			if inv, ok := st.inventories[id]; ok && inv.SoldCount > 0 {
				continue
			}
			delete(st.voyages, id)
			delete(st.inventories, id)
			n++
		}
		return nil
	})

	return n, err
}

func (r *VoyageRepo) CancelUnmodifiedByTemplate(ctx context.Context, templateID int64, rng repository.DateRange) (int64, error) {
	var n int64
	err := r.h.write(ctx, func(st *state) error {
		now := r.h.s.now()
		for id, v := range st.voyages {
			if !inTemplateRange(v, templateID, rng) || v.IsModified() || v.Status != domain.VoyageActive {
				continue
			}
			v.Status = domain.VoyageCancelled
			v.UpdatedAt = now
			st.voyages[id] = v
			n++
		}
		return nil
	})

	return n, err
}

func (r *VoyageRepo) CancelByRoute(ctx context.Context, route domain.Route, rng repository.DateRange) (int64, error) {
	var n int64
	err := r.h.write(ctx, func(st *state) error {
		now := r.h.s.now()
		for id, v := range st.voyages {
			if v.From.StationID != route.FromStationID || v.To.StationID != route.ToStationID {
				continue
			}
			if v.Status != domain.VoyageActive || !rng.Contains(v.DepartureDate) {
				continue
			}
			v.Status = domain.VoyageCancelled
			v.UpdatedAt = now
			st.voyages[id] = v
			n++
		}
		return nil
	})

	return n, err
}

func (r *VoyageRepo) CountByTemplate(ctx context.Context, templateID int64) (domain.TemplateVoyageCounts, error) {
	var c domain.TemplateVoyageCounts
	err := r.h.read(ctx, func(st *state) error {
		for _, v := range st.voyages {
			if v.TemplateID == nil || *v.TemplateID != templateID {
				continue
			}
			switch v.Status {
			case domain.VoyageActive:
				c.Active++
			case domain.VoyageCancelled:
				c.Cancelled++
			case domain.VoyageRetired:
				c.Retired++
			}
			if v.IsModified() {
				c.Modified++
			}
			c.Total++
		}
		return nil
	})

	return c, err
}

func (r *VoyageRepo) ListSweepCandidates(ctx context.Context, onOrBefore time.Time) ([]domain.Voyage, error) {
	var out []domain.Voyage
	err := r.h.read(ctx, func(st *state) error {
		withTickets := make(map[int64]bool)
		for _, t := range st.tickets {
			withTickets[t.VoyageID] = true
		}

		limit := domain.DateOf(onOrBefore)
		for _, v := range st.voyages {
			switch {
			case v.Status == domain.VoyageActive && !v.DepartureDate.After(limit):
				out = append(out, cloneVoyage(v))
			case v.Status == domain.VoyageRetired && withTickets[v.ID]:
				out = append(out, cloneVoyage(v))
			}
		}
		return nil
	})
	sortVoyages(out)

	return out, err
}

func inTemplateRange(v domain.Voyage, templateID int64, rng repository.DateRange) bool {
	return v.TemplateID != nil && *v.TemplateID == templateID && rng.Contains(v.DepartureDate)
}

func sortVoyages(vs []domain.Voyage) {
	sort.Slice(vs, func(i, j int) bool {
		if !vs[i].DepartureDate.Equal(vs[j].DepartureDate) {
			return vs[i].DepartureDate.Before(vs[j].DepartureDate)
		}
		if vs[i].DepartureTime != vs[j].DepartureTime {
			return vs[i].DepartureTime < vs[j].DepartureTime
		}
		return vs[i].ID < vs[j].ID
	})
}

// templateDateTaken reports whether another voyage of v's template already
// departs on v's date. v.DepartureDate must be a calendar date.
func templateDateTaken(st *state, v domain.Voyage) bool {
	if v.TemplateID == nil {
		return false
	}
	for id, other := range st.voyages {
		if id != v.ID && other.TemplateID != nil && *other.TemplateID == *v.TemplateID &&
			other.DepartureDate.Equal(v.DepartureDate) {
			return true
		}
	}
	return false
}
