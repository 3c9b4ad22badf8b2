package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ferry-go/internal/domain"
)

// DateRange is an inclusive range of calendar dates. A zero To is open-ended.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) Contains(d time.Time) bool {
	d = domain.DateOf(d)
	if d.Before(domain.DateOf(r.From)) {
		return false
	}
	return r.To.IsZero() || !d.After(domain.DateOf(r.To))
}

type VoyageRepository interface {
	Create(ctx context.Context, v *domain.Voyage) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Voyage, error)
	Update(ctx context.Context, v *domain.Voyage) error
	// Delete removes a voyage and its seat inventory.
	Delete(ctx context.Context, id int64) error
	SetStatus(ctx context.Context, id int64, status domain.VoyageStatus) error
	ExistsForTemplateDate(ctx context.Context, templateID int64, date time.Time) (bool, error)
	ListByTemplate(ctx context.Context, templateID int64, r DateRange) ([]domain.Voyage, error)

	// DeleteUnmodifiedByTemplate removes template-provenance voyages in range
	// that have no sold seats, together with their seat inventory.
	DeleteUnmodifiedByTemplate(ctx context.Context, templateID int64, r DateRange) (int64, error)
	// CancelUnmodifiedByTemplate cancels active template-provenance voyages in range.
	CancelUnmodifiedByTemplate(ctx context.Context, templateID int64, r DateRange) (int64, error)
	CancelByRoute(ctx context.Context, route domain.Route, r DateRange) (int64, error)
	CountByTemplate(ctx context.Context, templateID int64) (domain.TemplateVoyageCounts, error)

	// ListSweepCandidates returns active voyages dated on or before the given
	// date and retired voyages that still have live tickets.
	ListSweepCandidates(ctx context.Context, onOrBefore time.Time) ([]domain.Voyage, error)
}

type TemplateRepository interface {
	Create(ctx context.Context, t *domain.ScheduleTemplate) (int64, error)
	Get(ctx context.Context, id int64) (*domain.ScheduleTemplate, error)
	Update(ctx context.Context, t *domain.ScheduleTemplate) error
	List(ctx context.Context, activeOnly bool) ([]domain.ScheduleTemplate, error)
}

type InventoryRepository interface {
	// Create inserts inv unless the voyage already has an inventory; it returns
	// the stored row and whether it was inserted.
	Create(ctx context.Context, inv *domain.SeatInventory) (*domain.SeatInventory, bool, error)
	Get(ctx context.Context, voyageID int64) (*domain.SeatInventory, error)
	// GetForUpdate reads the row and holds it until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, voyageID int64) (*domain.SeatInventory, error)
	// Save writes bitmaps and sold count if the stored version still equals
	// inv.Version, then bumps the version. A stale version is ErrConflict.
	Save(ctx context.Context, inv *domain.SeatInventory) error
	Delete(ctx context.Context, voyageID int64) error
}

type TicketRepository interface {
	Create(ctx context.Context, t *domain.Ticket) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	ListByVoyage(ctx context.Context, voyageID int64) ([]domain.Ticket, error)
	CountByVoyage(ctx context.Context, voyageID int64) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ArchiveRepository interface {
	// Insert stores a snapshot; it reports false if the ticket was already
	// archived.
	Insert(ctx context.Context, a *domain.ArchivedTicket) (bool, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.ArchivedTicket, error)
	ListByVoyage(ctx context.Context, voyageID int64) ([]domain.ArchivedTicket, error)
}

type StationRepository interface {
	Get(ctx context.Context, id int64) (*domain.Station, error)
}

// Repositories is a set of repositories sharing one database handle.
type Repositories interface {
	Voyages() VoyageRepository
	Templates() TemplateRepository
	Inventories() InventoryRepository
	Tickets() TicketRepository
	Archive() ArchiveRepository
	Stations() StationRepository
}

// Transactor runs fn with repositories bound to a single transaction. The
// transaction commits if fn returns nil and rolls back otherwise.
type Transactor interface {
	Repositories
	RunTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
