package sweep

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	runs            prometheus.Counter
	voyagesRetired  prometheus.Counter
	ticketsArchived prometheus.Counter
	failures        prometheus.Counter
	duration        prometheus.Histogram
}

func initMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)

	return &metrics{
		runs: factory.NewCounter(prometheus.CounterOpts{
			Name: "ferrygo_sweep_runs_total",
			Help: "retirement sweep passes",
		}),
		voyagesRetired: factory.NewCounter(prometheus.CounterOpts{
			Name: "ferrygo_sweep_voyages_retired_total",
			Help: "departed voyages marked retired",
		}),
		ticketsArchived: factory.NewCounter(prometheus.CounterOpts{
			Name: "ferrygo_sweep_tickets_archived_total",
			Help: "tickets moved to the archive",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ferrygo_sweep_failures_total",
			Help: "voyages whose sweep failed and will be retried",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ferrygo_sweep_duration_seconds",
			Help:    "wall time of one sweep pass",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *metrics) observe(st Stats, seconds float64) {
	if m == nil {
		return
	}
	m.runs.Inc()
	m.voyagesRetired.Add(float64(st.VoyagesRetired))
	m.ticketsArchived.Add(float64(st.TicketsArchived))
	m.failures.Add(float64(st.Failures))
	m.duration.Observe(seconds)
}
