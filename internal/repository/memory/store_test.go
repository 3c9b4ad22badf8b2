package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
)

func newVoyage(templateID *int64, date time.Time) *domain.Voyage {
	return &domain.Voyage{
		TemplateID:    templateID,
		From:          domain.Endpoint{StationID: 1},
		To:            domain.Endpoint{StationID: 2},
		DepartureDate: date,
		DepartureTime: 9 * 60,
		ArrivalTime:   11 * 60,
		VehicleType:   seatmap.VehicleStandard,
		Status:        domain.VoyageActive,
		Provenance:    domain.ProvenanceTemplate,
	}
}

func TestRunTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	id, err := s.Voyages().Create(ctx, newVoyage(nil, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.RunTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		require.NoError(t, repos.Voyages().SetStatus(ctx, id, domain.VoyageCancelled))
		_, _, err := repos.Inventories().Create(ctx, &domain.SeatInventory{VoyageID: id, VehicleType: seatmap.VehicleStandard})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	v, err := s.Voyages().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.VoyageActive, v.Status)

	_, err = s.Inventories().Get(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVoyageUniquePerTemplateDate(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	tid := int64(7)
	date := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

	_, err := s.Voyages().Create(ctx, newVoyage(&tid, date))
	require.NoError(t, err)

	_, err = s.Voyages().Create(ctx, newVoyage(&tid, date.Add(3*time.Hour)))
	assert.ErrorIs(t, err, repository.ErrConflict)

	ok, err := s.Voyages().ExistsForTemplateDate(ctx, tid, date)
	require.NoError(t, err)
	assert.True(t, ok)

	next := date.AddDate(0, 0, 7)
	id, err := s.Voyages().Create(ctx, newVoyage(&tid, next))
	require.NoError(t, err)

	v, err := s.Voyages().Get(ctx, id)
	require.NoError(t, err)
	v.DepartureDate = date
	assert.ErrorIs(t, s.Voyages().Update(ctx, v), repository.ErrConflict)

	// Saving a voyage on its own date is not a conflict.
	v.DepartureDate = next
	v.DepartureTime = 10 * 60
	require.NoError(t, s.Voyages().Update(ctx, v))

	got, err := s.Voyages().Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.DepartureDate.Equal(next))
}

func TestInventorySaveChecksVersion(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	id, err := s.Voyages().Create(ctx, newVoyage(nil, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	inv, created, err := s.Inventories().Create(ctx, &domain.SeatInventory{VoyageID: id, VehicleType: seatmap.VehicleStandard})
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := s.Inventories().Create(ctx, &domain.SeatInventory{VoyageID: id, VehicleType: seatmap.VehicleFast})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, seatmap.VehicleStandard, again.VehicleType)

	stale := *inv
	inv.Seats[seatmap.UpperPromo] = inv.Seats[seatmap.UpperPromo].Set(1)
	inv.SoldCount = 1
	require.NoError(t, s.Inventories().Save(ctx, inv))

	err = s.Inventories().Save(ctx, &stale)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestArchiveInsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := &domain.ArchivedTicket{ID: uuid.New(), TicketID: uuid.New(), UserID: 3, VoyageID: 1}

	ok, err := s.Archive().Insert(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Archive().Insert(ctx, &domain.ArchivedTicket{ID: uuid.New(), TicketID: a.TicketID, UserID: 3, VoyageID: 1})
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := s.Archive().ListByUser(ctx, 3, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
