package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trend_digest"

// Metrics holds the pipeline's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	videosDiscovered prometheus.Counter
	analyses         *prometheus.CounterVec
	publishes        *prometheus.CounterVec
	unitErrors       *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.videosDiscovered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "videos_discovered_total",
		Help:      "Trending videos persisted by discovery",
	})

	m.analyses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analyses created, by source",
		},
		[]string{"source"},
	)

	m.publishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Publish attempts, by terminal status",
		},
		[]string{"status"},
	)

	m.unitErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_errors_total",
			Help:      "Per-item failures recorded in batch reports, by stage",
		},
		[]string{"stage"},
	)

	m.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Pipeline operation duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"operation", "result"},
	)

	m.registry.MustRegister(
		m.videosDiscovered,
		m.analyses,
		m.publishes,
		m.unitErrors,
		m.runDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) VideoDiscovered() {
	m.videosDiscovered.Inc()
}

func (m *Metrics) AnalysisCreated(fallback bool) {
	source := "generated"
	if fallback {
		source = "fallback"
	}
	m.analyses.WithLabelValues(source).Inc()
}

func (m *Metrics) Published(status string) {
	m.publishes.WithLabelValues(status).Inc()
}

func (m *Metrics) UnitError(stage string) {
	m.unitErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveRun(operation string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.runDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
