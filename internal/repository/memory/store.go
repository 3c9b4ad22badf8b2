// Package memory is an in-process implementation of the repository port.
// Transactions are serialized and roll back to a snapshot on error.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository"
)

type state struct {
	nextVoyageID   int64
	nextTemplateID int64

	voyages     map[int64]domain.Voyage
	templates   map[int64]domain.ScheduleTemplate
	inventories map[int64]domain.SeatInventory
	tickets     map[uuid.UUID]domain.Ticket
	archive     map[uuid.UUID]domain.ArchivedTicket // keyed by ticket id
}

func newState() *state {
	return &state{
		voyages:     make(map[int64]domain.Voyage),
		templates:   make(map[int64]domain.ScheduleTemplate),
		inventories: make(map[int64]domain.SeatInventory),
		tickets:     make(map[uuid.UUID]domain.Ticket),
		archive:     make(map[uuid.UUID]domain.ArchivedTicket),
	}
}

func (s *state) clone() *state {
	cp := &state{
		nextVoyageID:   s.nextVoyageID,
		nextTemplateID: s.nextTemplateID,
		voyages:        make(map[int64]domain.Voyage, len(s.voyages)),
		templates:      make(map[int64]domain.ScheduleTemplate, len(s.templates)),
		inventories:    make(map[int64]domain.SeatInventory, len(s.inventories)),
		tickets:        make(map[uuid.UUID]domain.Ticket, len(s.tickets)),
		archive:        make(map[uuid.UUID]domain.ArchivedTicket, len(s.archive)),
	}
	for k, v := range s.voyages {
		cp.voyages[k] = cloneVoyage(v)
	}
	for k, v := range s.templates {
		cp.templates[k] = v
	}
	for k, v := range s.inventories {
		cp.inventories[k] = v
	}
	for k, v := range s.tickets {
		v.Seats = slices.Clone(v.Seats)
		cp.tickets[k] = v
	}
	for k, v := range s.archive {
		v.Seats = slices.Clone(v.Seats)
		cp.archive[k] = v
	}
	return cp
}

func cloneVoyage(v domain.Voyage) domain.Voyage {
	if v.TemplateID != nil {
		id := *v.TemplateID
		v.TemplateID = &id
	}
	return v
}

type Store struct {
	mu sync.RWMutex
	st *state

	stationsMu sync.RWMutex
	stations   map[int64]domain.Station

	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used for created/updated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		st:       newState(),
		stations: make(map[int64]domain.Station),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PutStation seeds the station directory.
func (s *Store) PutStation(st domain.Station) {
	s.stationsMu.Lock()
	defer s.stationsMu.Unlock()
	s.stations[st.ID] = st
}

func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, repos repository.Repositories) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, handles{s: s, inTx: true}); err != nil {
		s.st = snapshot
		return err
	}

	return nil
}

func (s *Store) Voyages() repository.VoyageRepository       { return handles{s: s}.Voyages() }
func (s *Store) Templates() repository.TemplateRepository   { return handles{s: s}.Templates() }
func (s *Store) Inventories() repository.InventoryRepository { return handles{s: s}.Inventories() }
func (s *Store) Tickets() repository.TicketRepository       { return handles{s: s}.Tickets() }
func (s *Store) Archive() repository.ArchiveRepository      { return handles{s: s}.Archive() }
func (s *Store) Stations() repository.StationRepository     { return handles{s: s}.Stations() }

// handles binds repositories to the store; inTx means the caller already holds
// the write lock.
type handles struct {
	s    *Store
	inTx bool
}

func (h handles) Voyages() repository.VoyageRepository       { return &VoyageRepo{h} }
func (h handles) Templates() repository.TemplateRepository   { return &TemplateRepo{h} }
func (h handles) Inventories() repository.InventoryRepository { return &InventoryRepo{h} }
func (h handles) Tickets() repository.TicketRepository       { return &TicketRepo{h} }
func (h handles) Archive() repository.ArchiveRepository      { return &ArchiveRepo{h} }
func (h handles) Stations() repository.StationRepository     { return &StationRepo{h} }

func (h handles) read(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.inTx {
		return fn(h.s.st)
	}
	h.s.mu.RLock()
	defer h.s.mu.RUnlock()
	return fn(h.s.st)
}

// write runs fn under the write lock. Every fn validates before it mutates, so
// a failed call leaves the state untouched.
func (h handles) write(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.inTx {
		return fn(h.s.st)
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return fn(h.s.st)
}
