package notify

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Channel delivery attempts by channel type and outcome.",
		},
		[]string{"channel_type", "status"},
	)
	deliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "beacon",
			Subsystem: "notify",
			Name:      "delivery_duration_seconds",
			Help:      "Time spent delivering to one channel.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"channel_type"},
	)
	dispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "notify",
			Name:      "dispatches_total",
			Help:      "Send calls by notification type and result.",
		},
		[]string{"type", "result"},
	)
)

func init() {
	prometheus.MustRegister(deliveriesTotal, deliveryDuration, dispatchesTotal)
}
