package metrics

import (
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

	extractionTotal  *prometheus.CounterVec
	searchTotal      *prometheus.CounterVec
	searchMatches    *prometheus.HistogramVec
	searchDuration   *prometheus.HistogramVec
	uploadBytesTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medsync",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "medsync",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	extractionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsync",
			Subsystem: "extraction",
			Name:      "requests_total",
			Help:      "Total interactive extraction runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsync",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total search requests by outcome.",
		},
		[]string{"service", "outcome"},
	)
	searchMatches := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medsync",
			Subsystem: "search",
			Name:      "matched_records",
			Help:      "Distribution of matched records per successful search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medsync",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	uploadBytesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsync",
			Subsystem: "capture",
			Name:      "upload_bytes_total",
			Help:      "Total bytes of staged document images.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		extractionTotal,
		searchTotal,
		searchMatches,
		searchDuration,
		uploadBytesTotal,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		extractionTotal:  extractionTotal,
		searchTotal:      searchTotal,
		searchMatches:    searchMatches,
		searchDuration:   searchDuration,
		uploadBytesTotal: uploadBytesTotal,
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

// normalizePath collapses per-resource IDs so label cardinality stays bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/records/"):
		return "/v1/records/{record_id}"
	case strings.HasPrefix(path, "/v1/batches/"):
		return "/v1/batches/{batch_id}"
	case strings.HasPrefix(path, "/v1/capture/sessions/"):
		return "/v1/capture/sessions/{session_id}"
	case strings.HasPrefix(path, "/files/"):
		return "/files/{key}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordExtraction(service string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.extractionTotal.WithLabelValues(service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordSearch(service string, matched int, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.searchTotal.WithLabelValues(service, outcome).Inc()
	if err == nil {
		m.searchMatches.WithLabelValues(service).Observe(float64(matched))
		m.searchDuration.WithLabelValues(service).Observe(duration.Seconds())
	}
}

func (m *HTTPServerMetrics) RecordUploadBytes(service string, bytes int64) {
	if bytes <= 0 {
		return
	}
	m.uploadBytesTotal.WithLabelValues(service).Add(float64(bytes))
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
