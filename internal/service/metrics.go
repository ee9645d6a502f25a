package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors for service operations
type Metrics struct {
	CurveRequests     *prometheus.CounterVec
	RecomputeDuration *prometheus.HistogramVec
	SessionsSynced    prometheus.Counter
	BatchRuns         *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them with reg when it is non-nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CurveRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strava_power_curve_requests_total",
				Help: "Power curve requests by how they were answered",
			},
			[]string{"result"}, // fresh, recomputed, background, stale, failed
		),
		RecomputeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strava_power_curve_recompute_seconds",
				Help:    "Time to fetch streams and rebuild a power curve",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		SessionsSynced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "strava_power_sessions_synced_total",
				Help: "Sessions stored by sync",
			},
		),
		BatchRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strava_power_batch_runs_total",
				Help: "Batch recompute runs by status",
			},
			[]string{"status"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.CurveRequests, m.RecomputeDuration, m.SessionsSynced, m.BatchRuns)
	}
	return m
}
