package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for claims.
type Metrics struct {
	ClaimsTotal      prometheus.Counter
	ClaimsRejected   *prometheus.CounterVec
	ClaimDuration    prometheus.Histogram
	CollectionsTotal prometheus.Counter
}

// New registers the collection metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ClaimsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "chronostamp_claims_total",
			Help: "Total number of successful badge claims",
		}),
		ClaimsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chronostamp_claims_rejected_total",
			Help: "Rejected badge claims by reason",
		}, []string{"reason"}),
		ClaimDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronostamp_claim_duration_seconds",
			Help:    "Duration of Claim operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		CollectionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "chronostamp_collections_deployed_total",
			Help: "Total number of collections deployed",
		}),
	}
}

func (m *Metrics) IncrementClaims() {
	m.ClaimsTotal.Inc()
}

// IncrementRejected records a failed claim under the error code as reason.
func (m *Metrics) IncrementRejected(reason string) {
	m.ClaimsRejected.WithLabelValues(reason).Inc()
}

// ObserveClaim records the duration of a Claim operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveClaim(start time.Time) {
	m.ClaimDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementDeployed() {
	m.CollectionsTotal.Inc()
}
