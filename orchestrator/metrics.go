package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch slots, used as the stale-response metric label.
const (
	slotVocabulary    = "vocabulary"
	slotBatch         = "batch"
	slotAdverseEvents = "adverse_events"
)

// Metrics are the orchestrator's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	generations    prometheus.Counter
	staleResponses *prometheus.CounterVec
	fetchFailures  *prometheus.CounterVec
	batchDuration  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with registerer. A nil registerer leaves
// them unregistered.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		generations: factory.NewCounter(prometheus.CounterOpts{
			Name: "explorer_generations_total",
			Help: "Query generations started by dataset selections and applies",
		}),
		staleResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "explorer_stale_responses_total",
			Help: "Responses discarded because their generation was superseded, by fetch slot",
		}, []string{"slot"}),
		fetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "explorer_fetch_failures_total",
			Help: "Failed dataset service fetches by failure kind",
		}, []string{"kind"}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "explorer_batch_duration_seconds",
			Help:    "Time until the paged result and all distributions of an apply resolved",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}),
	}
}

func (metrics *Metrics) generationStarted() {
	if metrics != nil {
		metrics.generations.Inc()
	}
}

func (metrics *Metrics) staleResponse(slot string) {
	if metrics != nil {
		metrics.staleResponses.WithLabelValues(slot).Inc()
	}
}

func (metrics *Metrics) fetchFailed(kind FailureKind) {
	if metrics != nil {
		metrics.fetchFailures.WithLabelValues(kind.String()).Inc()
	}
}

func (metrics *Metrics) batchResolved(duration time.Duration) {
	if metrics != nil {
		metrics.batchDuration.Observe(duration.Seconds())
	}
}
