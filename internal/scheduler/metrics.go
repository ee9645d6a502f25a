package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors for request schedulers.
// One Metrics can be shared by several schedulers; series are labelled by upstream.
type Metrics struct {
	QuotaUsed  *prometheus.GaugeVec
	QuotaLimit *prometheus.GaugeVec
	QueueDepth *prometheus.GaugeVec
	Tasks      *prometheus.CounterVec
	Throttles  *prometheus.CounterVec
	QueueWait  *prometheus.HistogramVec
}

// NewMetrics builds the collectors and registers them with reg when it is non-nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QuotaUsed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "strava_power_quota_used",
				Help: "Requests used in the current upstream rate limit window",
			},
			[]string{"upstream", "window"},
		),
		QuotaLimit: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "strava_power_quota_limit",
				Help: "Request limit of the current upstream rate limit window",
			},
			[]string{"upstream", "window"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "strava_power_scheduler_queue_depth",
				Help: "Tasks waiting in the scheduler queue",
			},
			[]string{"upstream"},
		),
		Tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strava_power_scheduler_tasks_total",
				Help: "Scheduled upstream tasks by outcome",
			},
			[]string{"upstream", "outcome"},
		),
		Throttles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strava_power_scheduler_throttles_total",
				Help: "Times the scheduler paused for quota or upstream rejection",
			},
			[]string{"upstream", "reason"},
		),
		QueueWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strava_power_scheduler_queue_wait_seconds",
				Help:    "Time from enqueue to first dispatch",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"upstream"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.QuotaUsed, m.QuotaLimit, m.QueueDepth, m.Tasks, m.Throttles, m.QueueWait)
	}
	return m
}
