package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lungbuddy"

// Metrics records worker activity in Prometheus.
type Metrics struct {
	jobs        *prometheus.CounterVec
	cityResults *prometheus.CounterVec
	runDuration prometheus.Histogram
	lastRun     prometheus.Gauge
}

// NewMetrics creates the worker metrics and registers them with reg.
// A nil reg uses a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Pub/Sub jobs handled by job type and outcome.",
		}, []string{"job_type", "outcome"}),
		cityResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "aqi_refresh_cities_total",
			Help:      "City AQI refreshes by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "aqi_refresh_duration_seconds",
			Help:      "Duration of a full AQI refresh run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "aqi_refresh_last_run_timestamp_seconds",
			Help:      "Unix time of the last completed AQI refresh run.",
		}),
	}

	reg.MustRegister(m.jobs, m.cityResults, m.runDuration, m.lastRun)
	return m
}

// ObserveJob records the outcome of one Pub/Sub job.
func (m *Metrics) ObserveJob(jobType, outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(jobType, outcome).Inc()
}

// ObserveRefresh records a completed AQI refresh run.
func (m *Metrics) ObserveRefresh(result *RefreshResult) {
	if m == nil {
		return
	}
	m.cityResults.WithLabelValues("success").Add(float64(result.Successful))
	m.cityResults.WithLabelValues("failure").Add(float64(result.Failed))
	m.runDuration.Observe(result.Duration.Seconds())
	m.lastRun.Set(float64(result.EndTime.Unix()))
}
