package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/notify"
	"github.com/kirinyoku/ferry-go/internal/repository"
	"github.com/kirinyoku/ferry-go/internal/repository/memory"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var now = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

type captureNotifier struct {
	mu    sync.Mutex
	kinds []notify.EventKind
	users []int64
}

func (n *captureNotifier) Notify(_ context.Context, userID int64, kind notify.EventKind, _ any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	n.users = append(n.users, userID)
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.kinds)
}

func addVoyage(t *testing.T, store *memory.Store, date time.Time, dep domain.TimeOfDay) int64 {
	t.Helper()
	id, err := store.Voyages().Create(context.Background(), &domain.Voyage{
		From:          domain.Endpoint{StationID: 1, City: "Split", Title: "Split Port"},
		To:            domain.Endpoint{StationID: 2, City: "Brac", Title: "Supetar"},
		DepartureDate: date,
		DepartureTime: dep,
		ArrivalTime:   dep + 50,
		VehicleType:   seatmap.VehicleStandard,
		Status:        domain.VoyageActive,
		Provenance:    domain.ProvenanceOperator,
	})
	require.NoError(t, err)
	return id
}

func addTickets(t *testing.T, store *memory.Store, voyageID int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Tickets().Create(context.Background(), &domain.Ticket{
			ID:            uuid.New(),
			VoyageID:      voyageID,
			UserID:        int64(100 + i),
			Class:         seatmap.Economy,
			Seats:         []domain.SeatRef{{Partition: seatmap.UpperEconomy, Index: i}},
			PassengerName: "Passenger",
		}))
	}
}

func TestSweepArchivesYesterdaysVoyage(t *testing.T) {
	store := memory.NewStore()
	yesterday := addVoyage(t, store, now.AddDate(0, 0, -1), domain.TimeOfDay(9*60))
	addTickets(t, store, yesterday, 3)

	n := &captureNotifier{}
	s := New(store, Config{}, WithNotifier(n))
	ctx := context.Background()

	st, err := s.SweepOnce(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, Stats{VoyagesScanned: 1, VoyagesRetired: 1, TicketsArchived: 3}, st)

	archived, err := store.Archive().ListByVoyage(ctx, yesterday)
	require.NoError(t, err)
	require.Len(t, archived, 3)
	assert.Equal(t, "Split", archived[0].From.City)
	assert.True(t, archived[0].DepartureDate.Equal(domain.DateOf(now.AddDate(0, 0, -1))))

	live, err := store.Tickets().CountByVoyage(ctx, yesterday)
	require.NoError(t, err)
	assert.Zero(t, live)

	v, err := store.Voyages().Get(ctx, yesterday)
	require.NoError(t, err)
	assert.Equal(t, domain.VoyageRetired, v.Status)

	assert.Equal(t, 3, n.count())
	for _, k := range n.kinds {
		assert.Equal(t, notify.TicketArchived, k)
	}

	st, err = s.SweepOnce(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, st.TicketsArchived)

	archived, err = store.Archive().ListByVoyage(ctx, yesterday)
	require.NoError(t, err)
	assert.Len(t, archived, 3)
}

func TestConcurrentSweepsArchiveEachTicketOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	const tickets, workers = 20, 8

	store := memory.NewStore()
	id := addVoyage(t, store, now.AddDate(0, 0, -1), domain.TimeOfDay(9*60))
	addTickets(t, store, id, tickets)

	n := &captureNotifier{}
	s := New(store, Config{}, WithNotifier(n))
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total Stats
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := s.SweepOnce(ctx, now)
			assert.NoError(t, err)

			mu.Lock()
			defer mu.Unlock()
			total.TicketsArchived += st.TicketsArchived
			total.VoyagesRetired += st.VoyagesRetired
			total.Failures += st.Failures
		}()
	}
	wg.Wait()

	assert.Equal(t, tickets, total.TicketsArchived)
	assert.Equal(t, 1, total.VoyagesRetired)
	assert.Zero(t, total.Failures)

	archived, err := store.Archive().ListByVoyage(ctx, id)
	require.NoError(t, err)
	assert.Len(t, archived, tickets)

	live, err := store.Tickets().CountByVoyage(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, live)

	require.Equal(t, tickets, n.count())
	seen := make(map[int64]bool, tickets)
	for i, k := range n.kinds {
		assert.Equal(t, notify.TicketArchived, k)
		assert.False(t, seen[n.users[i]], "user %d notified twice", n.users[i])
		seen[n.users[i]] = true
	}
}

func TestSweepHonoursDepartureTime(t *testing.T) {
	store := memory.NewStore()
	left := addVoyage(t, store, now, domain.TimeOfDay(10*60))
	later := addVoyage(t, store, now, domain.TimeOfDay(14*60))
	tomorrow := addVoyage(t, store, now.AddDate(0, 0, 1), domain.TimeOfDay(6*60))
	addTickets(t, store, later, 1)

	s := New(store, Config{})
	ctx := context.Background()

	st, err := s.SweepOnce(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, Stats{VoyagesScanned: 1, VoyagesRetired: 1}, st)

	for id, want := range map[int64]domain.VoyageStatus{
		left:     domain.VoyageRetired,
		later:    domain.VoyageActive,
		tomorrow: domain.VoyageActive,
	} {
		v, err := store.Voyages().Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, v.Status, "voyage %d", id)
	}
}

func TestSweepUsesScheduleTimeZone(t *testing.T) {
	zagreb := time.FixedZone("CEST", 2*60*60)

	store := memory.NewStore()
	// 10:00 UTC is 12:00 in Zagreb on 2026-10-19.
	id := addVoyage(t, store, now, domain.TimeOfDay(11*60))

	st, err := New(store, Config{Location: zagreb}).SweepOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, st.VoyagesRetired)

	v, err := store.Voyages().Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.VoyageRetired, v.Status)
}

type flakyArchive struct {
	repository.ArchiveRepository
	failVoyage int64
}

func (a flakyArchive) Insert(ctx context.Context, at *domain.ArchivedTicket) (bool, error) {
	if at.VoyageID == a.failVoyage {
		return false, errors.New("disk full")
	}
	return a.ArchiveRepository.Insert(ctx, at)
}

type flakyRepos struct {
	repository.Repositories
	failVoyage int64
}

func (r flakyRepos) Archive() repository.ArchiveRepository {
	return flakyArchive{ArchiveRepository: r.Repositories.Archive(), failVoyage: r.failVoyage}
}

type flakyTx struct {
	*memory.Store
	failVoyage int64
}

func (t flakyTx) RunTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return t.Store.RunTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return fn(ctx, flakyRepos{Repositories: repos, failVoyage: t.failVoyage})
	})
}

func TestSweepIsolatesFailures(t *testing.T) {
	store := memory.NewStore()
	broken := addVoyage(t, store, now.AddDate(0, 0, -2), domain.TimeOfDay(8*60))
	healthy := addVoyage(t, store, now.AddDate(0, 0, -1), domain.TimeOfDay(8*60))
	addTickets(t, store, broken, 2)
	addTickets(t, store, healthy, 2)

	s := New(flakyTx{Store: store, failVoyage: broken}, Config{})
	ctx := context.Background()

	st, err := s.SweepOnce(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, 2, st.TicketsArchived)

	v, err := store.Voyages().Get(ctx, broken)
	require.NoError(t, err)
	assert.Equal(t, domain.VoyageActive, v.Status)

	live, err := store.Tickets().CountByVoyage(ctx, broken)
	require.NoError(t, err)
	assert.Equal(t, int64(2), live)

	st, err = New(store, Config{}).SweepOnce(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TicketsArchived)
	assert.Zero(t, st.Failures)
}

func TestArchiveFailureIsWrapped(t *testing.T) {
	store := memory.NewStore()
	id := addVoyage(t, store, now.AddDate(0, 0, -1), domain.TimeOfDay(8*60))
	addTickets(t, store, id, 1)

	s := New(flakyTx{Store: store, failVoyage: id}, Config{})
	v, err := store.Voyages().Get(context.Background(), id)
	require.NoError(t, err)

	_, _, err = s.sweepVoyage(context.Background(), *v, now)
	assert.ErrorIs(t, err, ErrArchiveWriteFailed)
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := memory.NewStore()
	id := addVoyage(t, store, now.AddDate(0, 0, -1), domain.TimeOfDay(9*60))
	addTickets(t, store, id, 2)

	s := New(store, Config{Interval: 10 * time.Millisecond}, WithClock(func() time.Time { return now }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := store.Tickets().CountByVoyage(context.Background(), id)
		return err == nil && n == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
