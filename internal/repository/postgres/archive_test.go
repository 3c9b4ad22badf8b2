package postgresrepo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDB captures Exec calls and answers with a fixed command tag.
type recordingDB struct {
	tag  string
	sql  string
	args []any
}

func (d *recordingDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.sql = sql
	d.args = args
	return pgconn.NewCommandTag(d.tag), nil
}

func (d *recordingDB) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }

func (d *recordingDB) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func (d *recordingDB) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }

func archivedTicket(archivedAt time.Time) *domain.ArchivedTicket {
	return &domain.ArchivedTicket{
		ID:              uuid.New(),
		TicketID:        uuid.New(),
		UserID:          101,
		VoyageID:        7,
		Class:           seatmap.Economy,
		Seats:           []domain.SeatRef{{Partition: seatmap.UpperEconomy, Index: 3}},
		PassengerName:   "Passenger",
		From:            domain.Endpoint{StationID: 1, City: "Split", Title: "Split Port"},
		To:              domain.Endpoint{StationID: 2, City: "Supetar", Title: "Supetar Pier"},
		DepartureDate:   time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
		DepartureTime:   domain.TimeOfDay(9 * 60),
		ArrivalTime:     domain.TimeOfDay(9*60 + 50),
		VehicleType:     seatmap.VehicleStandard,
		TicketCreatedAt: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
		ArchivedAt:      archivedAt,
	}
}

func TestArchiveInsertWritesArchivedAt(t *testing.T) {
	db := &recordingDB{tag: "INSERT 0 1"}
	repo := (&ArchiveRepo{}).With(db)

	at := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	inserted, err := repo.Insert(context.Background(), archivedTicket(at))
	require.NoError(t, err)
	assert.True(t, inserted)

	assert.Contains(t, db.sql, "archived_at")
	require.Len(t, db.args, 19)
	assert.Equal(t, at, db.args[18])
}

func TestArchiveInsertDefaultsArchivedAt(t *testing.T) {
	db := &recordingDB{tag: "INSERT 0 1"}
	repo := (&ArchiveRepo{}).With(db)

	_, err := repo.Insert(context.Background(), archivedTicket(time.Time{}))
	require.NoError(t, err)

	require.Len(t, db.args, 19)
	assert.Nil(t, db.args[18])
	assert.Contains(t, db.sql, "COALESCE($19::timestamptz, now())")
}

func TestArchiveInsertReportsDuplicate(t *testing.T) {
	db := &recordingDB{tag: "INSERT 0 0"}
	repo := (&ArchiveRepo{}).With(db)

	inserted, err := repo.Insert(context.Background(), archivedTicket(time.Now()))
	require.NoError(t, err)
	assert.False(t, inserted)
}
