package uptime

import "github.com/prometheus/client_golang/prometheus"

var (
	probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "uptime",
			Name:      "probes_total",
			Help:      "HTTP probes by resulting status.",
		},
		[]string{"status"},
	)
	probeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "beacon",
		Subsystem: "uptime",
		Name:      "probe_duration_seconds",
		Help:      "Wall time of one HTTP probe.",
		Buckets:   prometheus.DefBuckets,
	})
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "uptime",
			Name:      "transitions_total",
			Help:      "Monitor status changes by new status.",
		},
		[]string{"status"},
	)
	tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "beacon",
		Subsystem: "uptime",
		Name:      "tick_duration_seconds",
		Help:      "Wall time of one monitor tick.",
		Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120},
	})
	targetPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "beacon",
		Subsystem: "uptime",
		Name:      "target_panics_total",
		Help:      "Panics recovered while processing a single monitor.",
	})
)

func init() {
	prometheus.MustRegister(probesTotal, probeDuration, transitionsTotal, tickDuration, targetPanics)
}
