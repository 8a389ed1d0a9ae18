package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	itemTotal     *prometheus.CounterVec
	itemDuration  *prometheus.HistogramVec
	itemsInFlight prometheus.Gauge
	batchTotal    *prometheus.CounterVec
	batchSize     prometheus.Histogram
	queueLag      *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	itemTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsync",
			Subsystem: "worker",
			Name:      "batch_item_total",
			Help:      "Total processed batch items by status.",
		},
		[]string{"service", "status"},
	)
	itemDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medsync",
			Subsystem: "worker",
			Name:      "batch_item_duration_seconds",
			Help:      "Per-item processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	itemsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "medsync",
			Subsystem: "worker",
			Name:      "batch_items_in_flight",
			Help:      "Number of batch items currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsync",
			Subsystem: "worker",
			Name:      "batch_total",
			Help:      "Total completed batches by outcome.",
		},
		[]string{"service", "outcome"},
	)
	batchSize := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "medsync",
			Subsystem: "worker",
			Name:      "batch_size",
			Help:      "Number of items per submitted batch.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medsync",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between batch submission and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(itemTotal, itemDuration, itemsInFlight, batchTotal, batchSize, queueLag)

	return &WorkerMetrics{
		registry:      registry,
		itemTotal:     itemTotal,
		itemDuration:  itemDuration,
		itemsInFlight: itemsInFlight,
		batchTotal:    batchTotal,
		batchSize:     batchSize,
		queueLag:      queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartItem() {
	m.itemsInFlight.Inc()
}

func (m *WorkerMetrics) FinishItem(service string, duration time.Duration, err error) {
	m.itemsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.itemTotal.WithLabelValues(service, status).Inc()
	m.itemDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveBatch(service string, size, errorCount int) {
	outcome := "clean"
	if errorCount > 0 {
		outcome = "partial"
	}
	m.batchTotal.WithLabelValues(service, outcome).Inc()
	m.batchSize.Observe(float64(size))
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
