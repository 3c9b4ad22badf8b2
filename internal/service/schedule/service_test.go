package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository"
	"github.com/kirinyoku/ferry-go/internal/repository/memory"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
	"github.com/kirinyoku/ferry-go/internal/service/inventory"
	"github.com/kirinyoku/ferry-go/internal/station"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-10-19 is a Monday.
var now = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc   *Service
	inv   *inventory.Service
	store *memory.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	store := memory.NewStore(memory.WithClock(func() time.Time { return now }))
	store.PutStation(domain.Station{ID: 1, City: "Split", Title: "Split Port"})
	store.PutStation(domain.Station{ID: 2, City: "Supetar", Title: "Supetar Pier"})
	store.PutStation(domain.Station{ID: 3, City: "Hvar", Title: "Hvar Town"})

	inv := inventory.New(store, seatmap.DefaultProfiles())
	svc := New(store, inv, station.NewDirectory(store.Stations(), nil, 0), Config{},
		WithClock(func() time.Time { return now }))

	return fixture{svc: svc, inv: inv, store: store}
}

func mondayTemplate() domain.ScheduleTemplate {
	return domain.ScheduleTemplate{
		Route:         domain.Route{FromStationID: 1, ToStationID: 2},
		DayOfWeek:     time.Monday,
		DepartureTime: domain.TimeOfDay(14 * 60),
		ArrivalTime:   domain.TimeOfDay(14*60 + 50),
		VehicleType:   seatmap.VehicleStandard,
		Capacity:      domain.ClassCapacity{Promo: 40, Economy: 44, Business: 16},
		IsActive:      true,
	}
}

func (f fixture) voyages(t *testing.T, templateID int64) []domain.Voyage {
	t.Helper()
	vs, err := f.store.Voyages().ListByTemplate(context.Background(), templateID, repository.DateRange{})
	require.NoError(t, err)
	return vs
}

func TestCreateTemplateGeneratesHorizon(t *testing.T) {
	f := newFixture(t)

	tpl, generated, err := f.svc.CreateTemplate(context.Background(), mondayTemplate())
	require.NoError(t, err)

	// 2026-10-19 through 2026-12-14 inclusive.
	assert.Equal(t, 9, generated)

	vs := f.voyages(t, tpl.ID)
	require.Len(t, vs, 9)
	assert.True(t, vs[0].DepartureDate.Equal(date(2026, 10, 19)))
	assert.True(t, vs[8].DepartureDate.Equal(date(2026, 12, 14)))
	for _, v := range vs {
		assert.Equal(t, time.Monday, v.DepartureDate.Weekday())
		assert.Equal(t, "Split", v.From.City)
		assert.Equal(t, "Supetar Pier", v.To.Title)
		assert.Equal(t, domain.ProvenanceTemplate, v.Provenance)

		_, err := f.store.Inventories().Get(context.Background(), v.ID)
		assert.NoError(t, err)
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tpl := mondayTemplate()
	tpl.Capacity.Business = 17
	_, _, err := f.svc.CreateTemplate(ctx, tpl)
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	tpl = mondayTemplate()
	tpl.Route.ToStationID = 1
	_, _, err = f.svc.CreateTemplate(ctx, tpl)
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	tpl = mondayTemplate()
	tpl.Route.ToStationID = 42
	_, _, err = f.svc.CreateTemplate(ctx, tpl)
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	tpl = mondayTemplate()
	tpl.VehicleType = "catamaran"
	_, _, err = f.svc.CreateTemplate(ctx, tpl)
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestRegenerateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tpl := mondayTemplate()
	tpl.IsActive = false
	stored, generated, err := f.svc.CreateTemplate(ctx, tpl)
	require.NoError(t, err)
	require.Zero(t, generated)

	active := true
	_, _, err = f.svc.UpdateTemplateAndFutureVoyages(ctx, stored.ID,
		domain.TemplatePatch{IsActive: &active}, date(2026, 10, 19), date(2026, 11, 16))
	require.NoError(t, err)

	before := f.voyages(t, stored.ID)
	require.Len(t, before, 5)

	generated, err = f.svc.Regenerate(ctx, stored.ID, date(2026, 10, 19), date(2026, 11, 16))
	require.NoError(t, err)
	assert.Zero(t, generated)
	assert.Equal(t, before, f.voyages(t, stored.ID))
}

func TestRegenerateIncludesStartOnWeekday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tpl := mondayTemplate()
	tpl.IsActive = false
	stored, _, err := f.svc.CreateTemplate(ctx, tpl)
	require.NoError(t, err)

	active := true
	_, generated, err := f.svc.UpdateTemplateAndFutureVoyages(ctx, stored.ID,
		domain.TemplatePatch{IsActive: &active}, date(2026, 10, 26), date(2026, 10, 26))
	require.NoError(t, err)
	assert.Equal(t, 1, generated)

	_, generated, err = f.svc.UpdateTemplateAndFutureVoyages(ctx, stored.ID,
		domain.TemplatePatch{}, date(2026, 10, 27), date(2026, 11, 1))
	require.NoError(t, err)
	assert.Zero(t, generated)
}

func TestRegenerateClampsPastStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, _, err := f.svc.CreateTemplate(ctx, mondayTemplate())
	require.NoError(t, err)

	_, err = f.svc.Regenerate(ctx, stored.ID, date(2026, 9, 1), date(2026, 10, 1))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = f.svc.Regenerate(ctx, 99, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestModifiedVoyagesSurviveTemplateChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, _, err := f.svc.CreateTemplate(ctx, mondayTemplate())
	require.NoError(t, err)
	vs := f.voyages(t, stored.ID)

	late := domain.TimeOfDay(18 * 60)
	edited, err := f.svc.UpdateVoyage(ctx, vs[1].ID, domain.VoyagePatch{DepartureTime: &late})
	require.NoError(t, err)
	assert.True(t, edited.IsModified())

	early := domain.TimeOfDay(7 * 60)
	_, _, err = f.svc.UpdateTemplateAndFutureVoyages(ctx, stored.ID,
		domain.TemplatePatch{DepartureTime: &early}, time.Time{}, time.Time{})
	require.NoError(t, err)

	got, err := f.store.Voyages().Get(ctx, vs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, late, got.DepartureTime)

	for _, v := range f.voyages(t, stored.ID) {
		if v.ID != vs[1].ID {
			assert.Equal(t, early, v.DepartureTime)
		}
	}

	_, err = f.svc.CancelFutureVoyagesForTemplate(ctx, stored.ID, time.Time{})
	require.NoError(t, err)
	_, err = f.svc.DeleteUnmodifiedVoyagesForTemplate(ctx, stored.ID, time.Time{})
	require.NoError(t, err)

	got, err = f.store.Voyages().Get(ctx, vs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VoyageActive, got.Status)
	assert.Equal(t, late, got.DepartureTime)
}

func TestRegenerateKeepsVoyagesWithSales(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, _, err := f.svc.CreateTemplate(ctx, mondayTemplate())
	require.NoError(t, err)
	sold := f.voyages(t, stored.ID)[0]

	_, err = f.inv.Allocate(ctx, sold.ID, seatmap.UpperEconomy, 0)
	require.NoError(t, err)

	fast := seatmap.VehicleFast
	_, generated, err := f.svc.UpdateTemplateAndFutureVoyages(ctx, stored.ID,
		domain.TemplatePatch{VehicleType: &fast}, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 8, generated)

	got, err := f.store.Voyages().Get(ctx, sold.ID)
	require.NoError(t, err)
	assert.Equal(t, seatmap.VehicleStandard, got.VehicleType)
	assert.Len(t, f.voyages(t, stored.ID), 9)
}

func TestRegenerateLogsKeptSoldVoyages(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store := memory.NewStore(memory.WithClock(func() time.Time { return now }))
	store.PutStation(domain.Station{ID: 1, City: "Split", Title: "Split Port"})
	store.PutStation(domain.Station{ID: 2, City: "Supetar", Title: "Supetar Pier"})
	inv := inventory.New(store, seatmap.DefaultProfiles())
	svc := New(store, inv, station.NewDirectory(store.Stations(), nil, 0), Config{},
		WithClock(func() time.Time { return now }), WithLogger(logger))
	ctx := context.Background()

	stored, _, err := svc.CreateTemplate(ctx, mondayTemplate())
	require.NoError(t, err)
	vs, err := store.Voyages().ListByTemplate(ctx, stored.ID, repository.DateRange{})
	require.NoError(t, err)

	for _, v := range vs[:2] {
		_, err = inv.Allocate(ctx, v.ID, seatmap.UpperEconomy, 0)
		require.NoError(t, err)
	}
	require.Empty(t, buf.String())

	late := domain.TimeOfDay(15 * 60)
	arrive := domain.TimeOfDay(15*60 + 50)
	_, _, err = svc.UpdateTemplateAndFutureVoyages(ctx, stored.ID,
		domain.TemplatePatch{DepartureTime: &late, ArrivalTime: &arrive}, time.Time{}, time.Time{})
	require.NoError(t, err)

	var entry struct {
		Msg        string  `json:"msg"`
		TemplateID int64   `json:"template_id"`
		Count      int     `json:"count"`
		VoyageIDs  []int64 `json:"voyage_ids"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stale voyages kept: seats already sold", entry.Msg)
	assert.Equal(t, stored.ID, entry.TemplateID)
	assert.Equal(t, 2, entry.Count)
	assert.ElementsMatch(t, []int64{vs[0].ID, vs[1].ID}, entry.VoyageIDs)
}

func TestCancelAndDeleteAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, _, err := f.svc.CreateTemplate(ctx, mondayTemplate())
	require.NoError(t, err)

	n, err := f.svc.CancelFutureVoyagesForTemplate(ctx, stored.ID, date(2026, 11, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	n, err = f.svc.CancelFutureVoyagesForTemplate(ctx, stored.ID, date(2026, 11, 1))
	require.NoError(t, err)
	assert.Zero(t, n)

	counts, err := f.svc.CountVoyagesByTemplate(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TemplateVoyageCounts{Active: 2, Cancelled: 7, Total: 9}, counts)

	n, err = f.svc.DeleteUnmodifiedVoyagesForTemplate(ctx, stored.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)

	n, err = f.svc.DeleteUnmodifiedVoyagesForTemplate(ctx, stored.ID, time.Time{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeactivateTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, _, err := f.svc.CreateTemplate(ctx, mondayTemplate())
	require.NoError(t, err)

	n, err := f.svc.DeactivateTemplate(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)

	got, err := f.svc.GetTemplate(ctx, stored.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	generated, err := f.svc.Regenerate(ctx, stored.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Zero(t, generated)

	active, err := f.svc.ListTemplates(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestAdHocVoyage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := VoyageInput{
		Route:         domain.Route{FromStationID: 1, ToStationID: 3},
		DepartureDate: date(2026, 10, 21),
		DepartureTime: domain.TimeOfDay(8 * 60),
		ArrivalTime:   domain.TimeOfDay(9 * 60),
		VehicleType:   seatmap.VehicleStandard,
		Capacity:      domain.ClassCapacity{Promo: 10, Economy: 10, Business: 4},
	}

	v, err := f.svc.CreateVoyage(ctx, in)
	require.NoError(t, err)
	assert.Nil(t, v.TemplateID)
	assert.True(t, v.IsModified())
	assert.Equal(t, "Hvar", v.To.City)

	in.DepartureDate = date(2026, 10, 18)
	_, err = f.svc.CreateVoyage(ctx, in)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = f.inv.Allocate(ctx, v.ID, seatmap.LowerPromo, 0)
	require.NoError(t, err)

	fast := seatmap.VehicleFast
	_, err = f.svc.UpdateVoyage(ctx, v.ID, domain.VoyagePatch{VehicleType: &fast})
	assert.ErrorIs(t, err, ErrVoyageHasSales)

	require.NoError(t, f.svc.CancelVoyage(ctx, v.ID))
	require.NoError(t, f.svc.CancelVoyage(ctx, v.ID))

	_, err = f.svc.UpdateVoyage(ctx, v.ID, domain.VoyagePatch{})
	assert.ErrorIs(t, err, ErrVoyageClosed)

	assert.ErrorIs(t, f.svc.CancelVoyage(ctx, 999), ErrVoyageNotFound)
}

func TestUpdateVoyageSwapsVehicleWithoutSales(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, _, err := f.svc.CreateTemplate(ctx, mondayTemplate())
	require.NoError(t, err)
	v := f.voyages(t, stored.ID)[2]

	fast := seatmap.VehicleFast
	_, err = f.svc.UpdateVoyage(ctx, v.ID, domain.VoyagePatch{VehicleType: &fast})
	require.NoError(t, err)

	view, err := f.inv.GetAvailability(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, seatmap.VehicleFast, view.Vehicle)
}

func TestUpdateVoyageOntoOccupiedTemplateDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, _, err := f.svc.CreateTemplate(ctx, mondayTemplate())
	require.NoError(t, err)
	vs := f.voyages(t, stored.ID)

	_, err = f.svc.UpdateVoyage(ctx, vs[1].ID, domain.VoyagePatch{DepartureDate: &vs[0].DepartureDate})
	assert.ErrorIs(t, err, repository.ErrConflict)

	onDate, err := f.store.Voyages().ListByTemplate(ctx, stored.ID,
		repository.DateRange{From: vs[0].DepartureDate, To: vs[0].DepartureDate})
	require.NoError(t, err)
	require.Len(t, onDate, 1)
	assert.Equal(t, vs[0].ID, onDate[0].ID)

	got, err := f.store.Voyages().Get(ctx, vs[1].ID)
	require.NoError(t, err)
	assert.True(t, got.DepartureDate.Equal(vs[1].DepartureDate))
	assert.Equal(t, domain.ProvenanceTemplate, got.Provenance)
}

func TestCancelVoyagesByRoute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, _, err := f.svc.CreateTemplate(ctx, mondayTemplate())
	require.NoError(t, err)

	n, err := f.svc.CancelVoyagesByRoute(ctx, domain.Route{FromStationID: 1, ToStationID: 2}, date(2026, 12, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	counts, err := f.svc.CountVoyagesByTemplate(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Cancelled)
}
