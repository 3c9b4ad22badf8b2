package httpgin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository/memory"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
	"github.com/kirinyoku/ferry-go/internal/service"
	"github.com/kirinyoku/ferry-go/internal/service/booking"
	"github.com/kirinyoku/ferry-go/internal/service/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-10-19 is a Monday.
var now = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

type testServer struct {
	router *gin.Engine
	store  *memory.Store
	svcs   *service.Services
}

func newServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := func() time.Time { return now }
	store := memory.NewStore(memory.WithClock(clock))
	store.PutStation(domain.Station{ID: 1, City: "Split", Title: "Split Port"})
	store.PutStation(domain.Station{ID: 2, City: "Supetar", Title: "Supetar Pier"})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svcs := service.NewServices(service.Deps{
		Store:    store,
		Profiles: seatmap.DefaultProfiles(),
		Clock:    clock,
		Logger:   logger,
	}, service.Config{})

	return &testServer{router: NewRouter(svcs, opts, logger), store: store, svcs: svcs}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) createTemplate(t *testing.T) CreateTemplateResponse {
	t.Helper()
	monday := 1
	w := s.do(t, http.MethodPost, "/admin/templates", map[string]any{
		"from_station_id": 1,
		"to_station_id":   2,
		"day_of_week":     monday,
		"departure_time":  "14:00",
		"arrival_time":    "14:50",
		"vehicle_type":    "standard",
		"capacity":        map[string]int{"promo": 40, "economy": 44, "business": 16},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[CreateTemplateResponse](t, w)
}

func (s *testServer) firstVoyage(t *testing.T, templateID int64) domain.Voyage {
	t.Helper()
	n, err := s.svcs.Schedule.CountVoyagesByTemplate(context.Background(), templateID)
	require.NoError(t, err)
	require.NotZero(t, n.Total)

	// Voyage ids are assigned in generation order.
	v, err := s.store.Voyages().Get(context.Background(), 1)
	require.NoError(t, err)
	return *v
}

func TestHealthz(t *testing.T) {
	s := newServer(t, Options{})
	w := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestTemplateLifecycle(t *testing.T) {
	s := newServer(t, Options{})

	created := s.createTemplate(t)
	assert.Equal(t, 9, created.Generated)
	id := created.Template.ID

	w := s.do(t, http.MethodGet, fmt.Sprintf("/admin/templates/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/admin/templates/%d/regenerate", id), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0, decode[GeneratedResponse](t, w).Generated)

	w = s.do(t, http.MethodPatch, fmt.Sprintf("/admin/templates/%d", id), map[string]any{
		"departure_time": "15:00",
		"arrival_time":   "15:50",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	upd := decode[UpdateTemplateResponse](t, w)
	assert.Equal(t, domain.TimeOfDay(15*60), upd.Template.DepartureTime)
	assert.Equal(t, 9, upd.Generated)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/admin/templates/%d/cancel-future", id), FromDateRequest{FromDate: "2026-11-01"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(7), decode[CountResponse](t, w).Count)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/admin/templates/%d/counts", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	counts := decode[domain.TemplateVoyageCounts](t, w)
	assert.Equal(t, int64(2), counts.Active)
	assert.Equal(t, int64(7), counts.Cancelled)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/admin/templates/%d/deactivate", id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/admin/templates?active=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]domain.ScheduleTemplate](t, w))
}

func TestTemplateErrors(t *testing.T) {
	s := newServer(t, Options{})

	w := s.do(t, http.MethodGet, "/admin/templates/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/admin/templates/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/admin/templates", map[string]any{
		"from_station_id": 1,
		"to_station_id":   9,
		"day_of_week":     1,
		"departure_time":  "14:00",
		"arrival_time":    "14:50",
		"vehicle_type":    "standard",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	created := s.createTemplate(t)
	w = s.do(t, http.MethodPost, fmt.Sprintf("/admin/templates/%d/regenerate", created.Template.ID),
		DateRangeRequest{StartDate: "2026-12-01", EndDate: "2026-11-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTicketEventsAndReads(t *testing.T) {
	s := newServer(t, Options{})
	created := s.createTemplate(t)
	v := s.firstVoyage(t, created.Template.ID)
	base := fmt.Sprintf("/voyages/%d", v.ID)

	ticketID := uuid.New()
	ev := map[string]any{
		"event_id":  "evt-1",
		"type":      "ticket_created",
		"ticket_id": ticketID,
		"user_id":   7,
		"class":     "economy",
		"seats": []map[string]any{
			{"partition": "upper_economy", "index": 19},
			{"partition": "lower_economy", "index": 0},
		},
	}

	w := s.do(t, http.MethodPost, base+"/tickets/events", ev)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 2, decode[booking.Result](t, w).SoldCount)

	// Without an idempotency store a redelivery hits the sold seats.
	w = s.do(t, http.MethodPost, base+"/tickets/events", ev)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, base+"/availability", nil)
	require.Equal(t, http.StatusOK, w.Code)
	a := decode[query.Availability](t, w)
	assert.Equal(t, 2, a.Sold)
	assert.Equal(t, 42, a.Classes[seatmap.Economy].Available)

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	req := httptest.NewRequest(http.MethodGet, base+"/availability", nil)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	w = s.do(t, http.MethodGet, base+"/seats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	m := decode[query.SeatMap](t, w)
	assert.True(t, m.View.Partitions[seatmap.UpperEconomy].Taken[19])

	clash := map[string]any{
		"event_id":  "evt-2",
		"type":      "ticket_created",
		"ticket_id": uuid.New(),
		"user_id":   8,
		"class":     "economy",
		"seats":     []map[string]any{{"partition": "upper_economy", "index": 19}},
	}
	w = s.do(t, http.MethodPost, base+"/tickets/events", clash)
	require.Equal(t, http.StatusConflict, w.Code)
	er := decode[ErrorResponse](t, w)
	require.NotNil(t, er.Seat)
	assert.Equal(t, 19, er.Seat.Index)

	clash["event_id"] = "evt-3"
	clash["seats"] = []map[string]any{{"partition": "upper_economy", "index": 20}}
	w = s.do(t, http.MethodPost, base+"/tickets/events", clash)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, base+"/tickets/events", map[string]any{
		"event_id":  "evt-4",
		"type":      "ticket_cancelled",
		"ticket_id": ticketID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Zero(t, decode[booking.Result](t, w).SoldCount)

	w = s.do(t, http.MethodGet, "/voyages/999/availability", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVoyageAdminAndSweep(t *testing.T) {
	s := newServer(t, Options{})

	w := s.do(t, http.MethodPost, "/admin/voyages", map[string]any{
		"from_station_id": 2,
		"to_station_id":   1,
		"departure_date":  "2026-10-25",
		"departure_time":  "07:00",
		"arrival_time":    "07:50",
		"vehicle_type":    "fast",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	v := decode[domain.Voyage](t, w)
	assert.Equal(t, domain.ProvenanceOperator, v.Provenance)

	w = s.do(t, http.MethodPatch, fmt.Sprintf("/admin/voyages/%d", v.ID), map[string]any{"departure_time": "07:30", "arrival_time": "08:20"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.TimeOfDay(7*60+30), decode[domain.Voyage](t, w).DepartureTime)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/admin/voyages/%d/cancel", v.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodPost, "/admin/voyages", map[string]any{
		"from_station_id": 2,
		"to_station_id":   1,
		"departure_date":  "2026-10-01",
		"departure_time":  "07:00",
		"arrival_time":    "07:50",
		"vehicle_type":    "fast",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A voyage that left yesterday, inserted directly.
	past, err := s.store.Voyages().Create(context.Background(), &domain.Voyage{
		From:          domain.Endpoint{StationID: 1, City: "Split", Title: "Split Port"},
		To:            domain.Endpoint{StationID: 2, City: "Supetar", Title: "Supetar Pier"},
		DepartureDate: domain.DateOf(now).AddDate(0, 0, -1),
		DepartureTime: domain.TimeOfDay(8 * 60),
		ArrivalTime:   domain.TimeOfDay(8*60 + 50),
		VehicleType:   seatmap.VehicleStandard,
		Status:        domain.VoyageActive,
		Provenance:    domain.ProvenanceOperator,
	})
	require.NoError(t, err)
	require.NoError(t, s.store.Tickets().Create(context.Background(), &domain.Ticket{
		ID:       uuid.New(),
		VoyageID: past,
		UserID:   5,
		Class:    seatmap.Promo,
		Seats:    []domain.SeatRef{{Partition: seatmap.UpperPromo, Index: 0}},
	}))

	w = s.do(t, http.MethodPost, "/admin/sweep", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"tickets_archived":1`)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/voyages/%d/archive", past), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.ArchivedTicket](t, w), 1)

	w = s.do(t, http.MethodGet, "/users/5/archive?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.ArchivedTicket](t, w), 1)

	w = s.do(t, http.MethodGet, "/users/6/archive", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (bool, int64, time.Duration, error) {
	return false, 11, 1500 * time.Millisecond, nil
}

func TestTicketEventsRateLimited(t *testing.T) {
	s := newServer(t, Options{Limiter: denyLimiter{}})

	w := s.do(t, http.MethodPost, "/voyages/1/tickets/events", map[string]any{"type": "ticket_created"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "ferrygo_test_total", Help: "test"}))

	s := newServer(t, Options{Gatherer: reg})
	w := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ferrygo_test_total")
}
