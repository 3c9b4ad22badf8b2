package inventory

import (
	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	allocated *prometheus.CounterVec
	released  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
}

func initMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)

	return &metrics{
		allocated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ferrygo_seats_allocated_total",
				Help: "seats allocated, by partition",
			},
			[]string{"partition"},
		),
		released: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ferrygo_seats_released_total",
				Help: "seats released, by partition",
			},
			[]string{"partition"},
		),
		rejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ferrygo_seat_mutations_rejected_total",
				Help: "seat mutations rejected, by reason",
			},
			[]string{"reason"},
		),
	}
}

func (m *metrics) observe(kind mutation, seats []domain.SeatRef) {
	if m == nil {
		return
	}
	c := m.allocated
	if kind == release {
		c = m.released
	}
	for _, seat := range seats {
		c.WithLabelValues(seat.Partition.String()).Inc()
	}
}

func (m *metrics) reject(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}
