package schedule

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	generated prometheus.Counter
	deleted   prometheus.Counter
	cancelled prometheus.Counter
}

func initMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)

	return &metrics{
		generated: factory.NewCounter(prometheus.CounterOpts{
			Name: "ferrygo_voyages_generated_total",
			Help: "voyages created from schedule templates",
		}),
		deleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ferrygo_voyages_deleted_total",
			Help: "unmodified template voyages deleted by regeneration",
		}),
		cancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "ferrygo_voyages_cancelled_total",
			Help: "voyages cancelled by operators or template changes",
		}),
	}
}

func (m *metrics) record(generated, deleted, cancelled int64) {
	if m == nil {
		return
	}
	m.generated.Add(float64(generated))
	m.deleted.Add(float64(deleted))
	m.cancelled.Add(float64(cancelled))
}
