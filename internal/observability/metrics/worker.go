package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	jobsTotal     *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobsInFlight  prometheus.Gauge
	stageDuration *prometheus.HistogramVec
	modelCalls    *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Total processed extraction jobs by status.",
		},
		[]string{"service", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Extraction job duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docpipe",
			Subsystem: "worker",
			Name:      "jobs_in_flight",
			Help:      "Number of in-flight extraction jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "worker",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds (split, classify, extract).",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "stage"},
	)
	modelCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "worker",
			Name:      "model_calls_total",
			Help:      "Total generative model calls by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(jobsTotal, jobDuration, jobsInFlight, stageDuration, modelCalls)

	return &WorkerMetrics{
		registry:      registry,
		jobsTotal:     jobsTotal,
		jobDuration:   jobDuration,
		jobsInFlight:  jobsInFlight,
		stageDuration: stageDuration,
		modelCalls:    modelCalls,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) JobStarted() {
	m.jobsInFlight.Inc()
}

func (m *WorkerMetrics) JobFinished(service, status string, started time.Time) {
	m.jobsInFlight.Dec()
	m.jobsTotal.WithLabelValues(service, status).Inc()
	m.jobDuration.WithLabelValues(service, status).Observe(time.Since(started).Seconds())
}

func (m *WorkerMetrics) ObserveStage(service, stage string, started time.Time) {
	m.stageDuration.WithLabelValues(service, stage).Observe(time.Since(started).Seconds())
}

func (m *WorkerMetrics) ModelCall(service, outcome string) {
	m.modelCalls.WithLabelValues(service, outcome).Inc()
}
