package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	matchQueriesTotal    *prometheus.CounterVec
	matchHitTotal        *prometheus.CounterVec
	matchEmptyTotal      *prometheus.CounterVec
	matchReturnedCount   *prometheus.HistogramVec
	matchDuration        *prometheus.HistogramVec
	recommendationsTotal *prometheus.CounterVec
	quoteGradesTotal     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "priceintel",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "priceintel",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "priceintel",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	matchQueriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "priceintel",
			Subsystem: "match",
			Name:      "queries_total",
			Help:      "Total similarity match queries.",
		},
		[]string{"service"},
	)
	matchHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "priceintel",
			Subsystem: "match",
			Name:      "hit_total",
			Help:      "Total match queries returning at least one candidate.",
		},
		[]string{"service"},
	)
	matchEmptyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "priceintel",
			Subsystem: "match",
			Name:      "empty_total",
			Help:      "Total match queries returning no candidates.",
		},
		[]string{"service"},
	)
	matchReturnedCount := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "priceintel",
			Subsystem: "match",
			Name:      "returned_candidates",
			Help:      "Distribution of candidates returned per match query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10},
		},
		[]string{"service"},
	)
	matchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "priceintel",
			Subsystem: "match",
			Name:      "duration_seconds",
			Help:      "Match query duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	recommendationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "priceintel",
			Subsystem: "oracle",
			Name:      "recommendations_total",
			Help:      "Total pricing recommendations by data quality.",
		},
		[]string{"service", "data_quality"},
	)
	quoteGradesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "priceintel",
			Subsystem: "confidence",
			Name:      "quote_grades_total",
			Help:      "Total graded quotes by overall letter grade.",
		},
		[]string{"service", "grade"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		matchQueriesTotal,
		matchHitTotal,
		matchEmptyTotal,
		matchReturnedCount,
		matchDuration,
		recommendationsTotal,
		quoteGradesTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		matchQueriesTotal:    matchQueriesTotal,
		matchHitTotal:        matchHitTotal,
		matchEmptyTotal:      matchEmptyTotal,
		matchReturnedCount:   matchReturnedCount,
		matchDuration:        matchDuration,
		recommendationsTotal: recommendationsTotal,
		quoteGradesTotal:     quoteGradesTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/history/"):
		return "/v1/history/{key}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordMatchQuery(service string, returned int, duration time.Duration) {
	m.matchQueriesTotal.WithLabelValues(service).Inc()
	m.matchReturnedCount.WithLabelValues(service).Observe(float64(returned))
	m.matchDuration.WithLabelValues(service).Observe(duration.Seconds())

	if returned > 0 {
		m.matchHitTotal.WithLabelValues(service).Inc()
		return
	}
	m.matchEmptyTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordRecommendation(service, dataQuality string) {
	if dataQuality == "" {
		dataQuality = "unknown"
	}
	m.recommendationsTotal.WithLabelValues(service, dataQuality).Inc()
}

func (m *HTTPServerMetrics) RecordQuoteGrade(service, grade string) {
	if grade == "" {
		grade = "unknown"
	}
	m.quoteGradesTotal.WithLabelValues(service, grade).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
