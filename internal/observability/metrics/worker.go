package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	ingestTotal    *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
	ingestInFlight prometheus.Gauge
	storeSize      prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "priceintel",
			Subsystem: "worker",
			Name:      "observation_ingest_total",
			Help:      "Total ingested observations by outcome.",
		},
		[]string{"service", "outcome"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "priceintel",
			Subsystem: "worker",
			Name:      "observation_ingest_duration_seconds",
			Help:      "Observation ingest duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	ingestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "priceintel",
			Subsystem: "worker",
			Name:      "observation_ingest_in_flight",
			Help:      "Number of in-flight observation ingests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	storeSize := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "priceintel",
			Subsystem: "worker",
			Name:      "store_records",
			Help:      "Current number of observations in the knowledge base.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(ingestTotal, ingestDuration, ingestInFlight, storeSize)

	return &WorkerMetrics{
		registry:       registry,
		ingestTotal:    ingestTotal,
		ingestDuration: ingestDuration,
		ingestInFlight: ingestInFlight,
		storeSize:      storeSize,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartIngest() {
	m.ingestInFlight.Inc()
}

// FinishIngest records one completed ingest. Outcome is the ingest reason
// (stored, duplicate, zero_price, empty_item) or "error" on failure.
func (m *WorkerMetrics) FinishIngest(service, outcome string, duration time.Duration, err error) {
	m.ingestInFlight.Dec()

	if err != nil {
		outcome = "error"
	} else if outcome == "" {
		outcome = "unknown"
	}

	m.ingestTotal.WithLabelValues(service, outcome).Inc()
	m.ingestDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

func (m *WorkerMetrics) SetStoreSize(records int) {
	m.storeSize.Set(float64(records))
}
