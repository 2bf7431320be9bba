package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TrackerMetrics groups the collectors the batch pipeline reports to.
// A nil *TrackerMetrics is valid and records nothing.
type TrackerMetrics struct {
	Tasks         *prometheus.CounterVec
	TaskDuration  *prometheus.HistogramVec
	RateLimitWait *prometheus.HistogramVec
	InFlight      prometheus.Gauge
	Extractions   *prometheus.CounterVec
	Batches       *prometheus.CounterVec
}

// New registers the tracker collectors on reg.
func New(reg prometheus.Registerer) *TrackerMetrics {
	f := promauto.With(reg)
	return &TrackerMetrics{
		Tasks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_tasks_total",
			Help: "Completed batch cells by provider and outcome",
		}, []string{"provider", "status"}),
		TaskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracker_task_duration_seconds",
			Help:    "Duration of one cell from slot acquisition to result",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"provider"}),
		RateLimitWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracker_rate_limit_wait_seconds",
			Help:    "Time a cell waited for its provider rate limit token",
			Buckets: []float64{0, 1, 5, 15, 60, 300, 900},
		}, []string{"provider"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_tasks_in_flight",
			Help: "Cells currently holding a global concurrency slot",
		}),
		Extractions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_extractions_total",
			Help: "Secondary extraction calls by kind and outcome",
		}, []string{"kind", "status"}),
		Batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_batches_total",
			Help: "Batches run by provider and outcome",
		}, []string{"provider", "status"}),
	}
}

func (m *TrackerMetrics) ObserveTask(provider, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Tasks.WithLabelValues(provider, status).Inc()
	m.TaskDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *TrackerMetrics) ObserveWait(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.RateLimitWait.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *TrackerMetrics) SlotAcquired() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

func (m *TrackerMetrics) SlotReleased() {
	if m == nil {
		return
	}
	m.InFlight.Dec()
}

func (m *TrackerMetrics) ObserveExtraction(kind, status string) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(kind, status).Inc()
}

func (m *TrackerMetrics) ObserveBatch(provider, status string) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(provider, status).Inc()
}
