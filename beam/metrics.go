package beam

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	urgentQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "corebeacon",
		Subsystem: "beam",
		Name:      "urgent_queue_depth",
		Help:      "Number of urgent fetch batches currently queued.",
	})
	predictiveQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "corebeacon",
		Subsystem: "beam",
		Name:      "predictive_queue_depth",
		Help:      "Number of predictive fetch batches currently queued.",
	})
	spreadFactorGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "corebeacon",
		Subsystem: "beam",
		Name:      "spread_factor",
		Help:      "Current spread factor, mirrored into the urgent pipeline's desired knight count.",
	})
)
