package agent

import "github.com/prometheus/client_golang/prometheus"

var (
	reportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "agent",
			Name:      "reports_total",
			Help:      "Agent reports ingested by result.",
		},
		[]string{"result"},
	)
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "agent",
			Name:      "transitions_total",
			Help:      "Agent status changes by new status.",
		},
		[]string{"status"},
	)
	thresholdBreaches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "agent",
			Name:      "threshold_breaches_total",
			Help:      "Reported samples at or above their threshold, by metric.",
		},
		[]string{"metric"},
	)
	tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "beacon",
		Subsystem: "agent",
		Name:      "tick_duration_seconds",
		Help:      "Wall time of one agent staleness tick.",
		Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10},
	})
	metricsPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "beacon",
		Subsystem: "agent",
		Name:      "metrics_pruned_total",
		Help:      "Agent metric samples deleted by retention.",
	})
	targetPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "beacon",
		Subsystem: "agent",
		Name:      "target_panics_total",
		Help:      "Panics recovered while processing a single agent.",
	})
)

func init() {
	prometheus.MustRegister(reportsTotal, transitionsTotal, thresholdBreaches, tickDuration, metricsPruned, targetPanics)
}
