package assessment

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lungbuddy/lungbuddy/internal/risk"
)

const namespace = "lungbuddy"

// Metrics records scoring activity in Prometheus.
type Metrics struct {
	computed    *prometheus.CounterVec
	labels      *prometheus.CounterVec
	scores      prometheus.Histogram
	damage      *prometheus.HistogramVec
	duration    prometheus.Histogram
	submissions *prometheus.CounterVec
}

// NewMetrics creates the scoring metrics and registers them with reg.
// A nil reg uses a private registry, which keeps tests isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		computed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_computed_total",
			Help:      "Number of questionnaires scored.",
		}, []string{"mode"}),
		labels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessment_labels_total",
			Help:      "Number of scored questionnaires per risk label.",
		}, []string{"label"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_score",
			Help:      "Distribution of lung health scores.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		damage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_domain_damage",
			Help:      "Distribution of damage points per domain.",
			Buckets:   []float64{0, 1, 2.5, 5, 10, 15, 20, 25, 35},
		}, []string{"domain"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_batch_duration_seconds",
			Help:      "Time spent scoring a batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaderboard_submissions_total",
			Help:      "Leaderboard score submissions by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.computed, m.labels, m.scores, m.damage, m.duration, m.submissions)
	return m
}

// ObserveResult records one scored questionnaire.
func (m *Metrics) ObserveResult(mode string, r risk.Result) {
	if m == nil {
		return
	}
	m.computed.WithLabelValues(mode).Inc()
	m.labels.WithLabelValues(string(r.Label)).Inc()
	m.scores.Observe(float64(r.Score))

	b := r.Breakdown
	m.damage.WithLabelValues("biological").Observe(b.Biological)
	m.damage.WithLabelValues("behavioral").Observe(b.Behavioral)
	m.damage.WithLabelValues("environmental").Observe(b.Environmental)
	m.damage.WithLabelValues("sleep").Observe(b.Sleep)
	m.damage.WithLabelValues("disease").Observe(b.Disease)
}

// ObserveBatch records the duration of a batch.
func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

// ObserveSubmission records the outcome of a leaderboard submission.
func (m *Metrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}
