package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks registry activity.
type Metrics struct {
	BadgesCreated       prometheus.Counter
	BadgesTotal         prometheus.Gauge
	CreateBadgeDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BadgesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "chronostamp_badges_created_total",
			Help: "Total number of collections created through the registry",
		}),
		BadgesTotal: f.NewGauge(prometheus.GaugeOpts{
			Name: "chronostamp_registry_badges",
			Help: "Number of collections in the registry's deployed list",
		}),
		CreateBadgeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronostamp_create_badge_duration_seconds",
			Help:    "Duration of CreateNewBadge operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementCreated records a creation and the new list length.
func (m *Metrics) IncrementCreated(total uint64) {
	m.BadgesCreated.Inc()
	m.BadgesTotal.Set(float64(total))
}

// ObserveCreate records the duration of a CreateNewBadge operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateBadgeDuration.Observe(time.Since(start).Seconds())
}
